package health

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

type stubChecker struct {
	name string
	err  error
}

func (s stubChecker) Name() string                  { return s.name }
func (s stubChecker) Check(context.Context) error { return s.err }

func TestCheckerRegistry_Check(t *testing.T) {
	tests := []struct {
		name     string
		required error
		optional error
		want     Status
	}{
		{"all healthy", nil, nil, StatusHealthy},
		{"optional down", nil, errors.New("redis down"), StatusDegraded},
		{"required down", errors.New("mongo down"), nil, StatusUnhealthy},
		{"both down", errors.New("mongo down"), errors.New("redis down"), StatusUnhealthy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewCheckerRegistry()
			r.Register(stubChecker{name: "mongodb", err: tt.required})
			r.RegisterOptional(stubChecker{name: "redis", err: tt.optional})

			h := r.Check(context.Background())
			assert.Equal(t, tt.want, h.Status)
			assert.Len(t, h.Checks, 2)
			if tt.optional != nil {
				assert.Equal(t, StatusDegraded, h.Checks["redis"].Status)
				assert.Equal(t, tt.optional.Error(), h.Checks["redis"].Message)
			}
		})
	}
}
