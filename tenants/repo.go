package tenants

import (
	"context"
	"net/url"
)

const myTenantsEndpoint = "/api/business-places/my"

// Source lists the business places of the signed-in user.
type Source interface {
	MyTenants(ctx context.Context) ([]*Tenant, error)
}

// Getter is the part of the session manager the API source needs.
type Getter interface {
	Get(ctx context.Context, endpoint string, query url.Values, out any) error
}

// placeWithRole is the backend's wire shape for one membership.
type placeWithRole struct {
	BusinessPlace struct {
		ID      string `json:"id"`
		Name    string `json:"name"`
		Address string `json:"address"`
		Phone   string `json:"phone"`
	} `json:"businessPlace"`
	UserRole    Role `json:"userRole"`
	MemberCount int  `json:"memberCount"`
}

// APISource reads the memberships from the VocaCRM backend.
type APISource struct {
	client Getter
}

var _ Source = (*APISource)(nil)

func NewAPISource(client Getter) *APISource {
	return &APISource{client: client}
}

func (s *APISource) MyTenants(ctx context.Context) ([]*Tenant, error) {
	var places []placeWithRole
	if err := s.client.Get(ctx, myTenantsEndpoint, nil, &places); err != nil {
		return nil, err
	}
	out := make([]*Tenant, 0, len(places))
	for _, p := range places {
		if p.BusinessPlace.ID == "" {
			continue
		}
		out = append(out, &Tenant{
			ID:          p.BusinessPlace.ID,
			Name:        p.BusinessPlace.Name,
			Address:     p.BusinessPlace.Address,
			Phone:       p.BusinessPlace.Phone,
			Role:        p.UserRole,
			MemberCount: p.MemberCount,
		})
	}
	return out, nil
}
