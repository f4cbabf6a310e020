package application

import (
	"context"

	"github.com/casbin/casbin/v3"
	"github.com/riverrun/chronicle/pkg/domain"
)

// CasbinAuthorizer resolves an (actor, tenant, command) triple against a
// Casbin enforcer. This is authorization, not authentication — Chronicle
// never verifies who the caller is, only what they may do once a Payload's
// ActorID/TenantID have already been established by the caller (see
// pkg/infrastructure's JWT credential parsing, D6).
type CasbinAuthorizer struct {
	enforcer *casbin.Enforcer
}

func NewCasbinAuthorizer(enforcer *casbin.Enforcer) *CasbinAuthorizer {
	return &CasbinAuthorizer{enforcer: enforcer}
}

// AuthorizationMiddleware denies a command with a CommandValidationError
// when the enforcer rejects (actor, tenant, command type).
func (a *CasbinAuthorizer) AuthorizationMiddleware() Middleware[Command, struct{}] {
	return func(next Handler[Command, struct{}]) Handler[Command, struct{}] {
		return func(ctx context.Context, log domain.Logger, p Payload[Command]) (Response[struct{}], error) {
			commandType := p.Data.CommandType()
			allowed, err := a.enforcer.Enforce(p.ActorID, p.TenantID, commandType)
			if err != nil {
				return Response[struct{}]{}, domain.NewEventStoreError("authorization check failed", err)
			}
			if !allowed {
				log.Warn("command denied by authorization policy", "actorId", p.ActorID, "tenantId", p.TenantID, "type", commandType)
				return Response[struct{}]{}, domain.NewCommandValidationError(commandType, "actor is not authorized for this command")
			}
			return next(ctx, log, p)
		}
	}
}
