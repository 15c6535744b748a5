package target

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"datasync/internal/classify"
	"datasync/internal/integration"
	"datasync/internal/transform"
)

const (
	FieldCreatedBy          = "createdBy"
	FieldActive             = "active"
	FieldPassword           = "password"
	FieldMustChangePassword = "mustChangePassword"
)

// Env is resolved once per run and shared by every row.
type Env struct {
	DefaultOwner        string
	DefaultPasswordHash string
	BcryptCost          int
}

// Rules are the fixed invariants of one target collection.
type Rules struct {
	Required []string
	// Enrich runs after the required check and before entity resolution.
	// The returned values are applied only when the row is inserted.
	Enrich func(payload map[string]any, env Env) (map[string]any, error)
	// Finalize runs on the write path after keep fields were removed.
	Finalize func(payload map[string]any, insert bool, env Env) error
}

var rules = map[integration.TargetCollection]Rules{
	integration.CollectionProjects: {
		Required: []string{"projectId", "client", "projectName"},
		Enrich:   enrichProject,
		Finalize: finalizeProject,
	},
	integration.CollectionUsers: {
		Required: []string{"name", "email"},
		Finalize: finalizeUser,
	},
	integration.CollectionTeams: {
		Required: []string{"name"},
	},
}

// RulesFor returns the write rules for collection c.
func RulesFor(c integration.TargetCollection) (Rules, error) {
	r, ok := rules[c]
	if !ok {
		return Rules{}, fmt.Errorf("unknown target collection %q", c)
	}
	return r, nil
}

// CheckRequired fails with a required error naming every blank field.
func (r Rules) CheckRequired(payload map[string]any) error {
	var missing []string
	for _, f := range r.Required {
		if isBlank(payload[f]) {
			missing = append(missing, f)
		}
	}
	if len(missing) > 0 {
		return classify.Required("missing required fields: " + strings.Join(missing, ", "))
	}
	return nil
}

func (r Rules) enrich(payload map[string]any, env Env) (map[string]any, error) {
	if r.Enrich == nil {
		return nil, nil
	}
	return r.Enrich(payload, env)
}

func (r Rules) finalize(payload map[string]any, insert bool, env Env) error {
	if r.Finalize == nil {
		return nil
	}
	return r.Finalize(payload, insert, env)
}

// Prepare runs the required check and enrichment for one payload.
func (r Rules) Prepare(payload map[string]any, env Env) (map[string]any, error) {
	if err := r.CheckRequired(payload); err != nil {
		return nil, err
	}
	return r.enrich(payload, env)
}

// ForInsert returns the document to insert.
func (r Rules) ForInsert(payload, insertOnly map[string]any, env Env) (map[string]any, error) {
	doc := clone(payload)
	for k, v := range insertOnly {
		doc[k] = v
	}
	if err := r.finalize(doc, true, env); err != nil {
		return nil, err
	}
	return doc, nil
}

// ForUpdate returns the fields to set on an existing entity. Fields in keep
// are left untouched.
func (r Rules) ForUpdate(payload map[string]any, keep map[string]struct{}, env Env) (map[string]any, error) {
	set := make(map[string]any, len(payload))
	for k, v := range payload {
		if _, kept := keep[k]; !kept {
			set[k] = v
		}
	}
	if err := r.finalize(set, false, env); err != nil {
		return nil, err
	}
	return set, nil
}

func enrichProject(payload map[string]any, env Env) (map[string]any, error) {
	if !isBlank(payload[FieldCreatedBy]) {
		return nil, nil
	}
	delete(payload, FieldCreatedBy)
	if env.DefaultOwner == "" {
		return nil, classify.Required("createdBy is required and no default owner could be resolved")
	}
	return map[string]any{FieldCreatedBy: env.DefaultOwner}, nil
}

func finalizeProject(payload map[string]any, _ bool, _ Env) error {
	payload[FieldActive] = true
	return nil
}

func finalizeUser(payload map[string]any, insert bool, env Env) error {
	raw, present := payload[FieldPassword]
	if present && !isBlank(raw) {
		hash, err := HashPassword(transform.Stringify(raw), env.BcryptCost)
		if err != nil {
			return err
		}
		payload[FieldPassword] = hash
		return nil
	}

	if !insert {
		delete(payload, FieldPassword)
		return nil
	}
	payload[FieldPassword] = env.DefaultPasswordHash
	payload[FieldMustChangePassword] = true
	return nil
}

// HashPassword bcrypt-hashes plain. Values that already are bcrypt hashes
// are stored as is.
func HashPassword(plain string, cost int) (string, error) {
	if _, err := bcrypt.Cost([]byte(plain)); err == nil {
		return plain, nil
	}
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// ResolveEnv resolves the per-run defaults. invokingUser is the owner
// fallback when no active administrator exists or the lookup failed.
func ResolveEnv(ctx context.Context, owners OwnerResolver, invokingUser, defaultPasswordHash string, cost int) (Env, error) {
	env := Env{DefaultPasswordHash: defaultPasswordHash, BcryptCost: cost}

	var err error
	if owners != nil {
		env.DefaultOwner, err = owners.FirstActiveAdmin(ctx)
	}
	if env.DefaultOwner == "" {
		env.DefaultOwner = strings.TrimSpace(invokingUser)
	}
	return env, err
}

func isBlank(v any) bool {
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s) == ""
	}
	return v == nil
}

func clone(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
