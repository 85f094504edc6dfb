package domain

import "context"

// Role: явная роль вызывающего, которую выставляет сервис аутентификации.
type Role string

const (
	RoleCustomer Role = "customer"
	RoleAdmin    Role = "admin"
)

// ParseRole разбирает роль; неизвестные значения понижаются до покупателя.
func ParseRole(s string) Role {
	if Role(s) == RoleAdmin {
		return RoleAdmin
	}
	return RoleCustomer
}

// Principal: аутентифицированный пользователь запроса.
type Principal struct {
	UserID string
	Role   Role
}

// IsAdmin сообщает о наличии административных прав.
func (p Principal) IsAdmin() bool {
	return p.Role == RoleAdmin
}

// CanAccess разрешает доступ владельцу ресурса и администратору.
func (p Principal) CanAccess(ownerID string) bool {
	return p.IsAdmin() || (p.UserID != "" && p.UserID == ownerID)
}

type principalKey struct{}

// WithPrincipal кладёт пользователя в контекст.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFrom достаёт пользователя из контекста.
func PrincipalFrom(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok && p.UserID != ""
}
