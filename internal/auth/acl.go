package auth

import (
	_ "embed"
	"fmt"
	"log"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	stringadapter "github.com/casbin/casbin/v2/persist/string-adapter"
)

const (
	RoleAdmin    = "admin"
	RoleOperator = "operator"
	RoleViewer   = "viewer"
)

//go:embed acl_model.conf
var aclModel string

//go:embed acl_policy.csv
var aclPolicy string

// ACL decides whether a role may call a route. viewer reads, operator also
// writes (except bulk secret deletion), admin may do anything including
// reading the audit journal.
type ACL struct {
	enforcer *casbin.Enforcer
}

func NewACL() (*ACL, error) {
	return NewACLFromPolicy(aclPolicy)
}

// NewACLFromPolicy builds an ACL from CSV policy lines.
func NewACLFromPolicy(policy string) (*ACL, error) {
	m, err := model.NewModelFromString(aclModel)
	if err != nil {
		return nil, fmt.Errorf("load acl model: %w", err)
	}
	e, err := casbin.NewEnforcer(m, stringadapter.NewAdapter(policy))
	if err != nil {
		return nil, fmt.Errorf("create acl enforcer: %w", err)
	}
	return &ACL{enforcer: e}, nil
}

func (a *ACL) Allowed(role, path, method string) bool {
	ok, err := a.enforcer.Enforce(role, path, method)
	if err != nil {
		log.Printf("ACL check failed for role=%s %s %s: %v", role, method, path, err)
		return false
	}
	return ok
}
