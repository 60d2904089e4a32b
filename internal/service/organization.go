package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/emrgen/knowledge/internal/auth"
	"github.com/emrgen/knowledge/internal/model"
	"github.com/emrgen/knowledge/internal/store"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type Organization struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	OwnerID   string    `json:"ownerId"`
	CreatedAt time.Time `json:"createdAt"`
}

type Group struct {
	ID             string    `json:"id"`
	OrganizationID string    `json:"organizationId"`
	Name           string    `json:"name"`
	CreatedAt      time.Time `json:"createdAt"`
}

type CreateOrganizationRequest struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name"`
}

type CreateGroupRequest struct {
	ID             string `json:"id,omitempty"`
	OrganizationID string `json:"-"`
	Name           string `json:"name"`
}

// NewOrganizationService creates a new OrganizationService.
func NewOrganizationService(store store.Store) *OrganizationService {
	return &OrganizationService{store: store}
}

// OrganizationService manages organizations and their groups.
type OrganizationService struct {
	store store.Store
}

// CreateOrganization creates an organization owned by the caller.
func (o *OrganizationService) CreateOrganization(ctx context.Context, caller *auth.Identity, req CreateOrganizationRequest) (*Organization, error) {
	if err := validateRequired("name", req.Name); err != nil {
		return nil, err
	}

	id, err := newID(req.ID)
	if err != nil {
		return nil, err
	}

	org := &model.Organization{
		ID:      id,
		Name:    req.Name,
		OwnerID: caller.UserID,
	}
	if err := o.store.CreateOrganization(ctx, org); err != nil {
		return nil, fmt.Errorf("create organization: %w", err)
	}

	logrus.Infof("organization %s created by %s", org.ID, caller.UserID)

	return organizationView(org), nil
}

func (o *OrganizationService) GetOrganization(ctx context.Context, id string) (*Organization, error) {
	org, err := o.store.GetOrganization(ctx, id)
	if err != nil {
		return nil, translate(err, ErrOrganizationNotFound)
	}

	return organizationView(org), nil
}

func (o *OrganizationService) ListOrganizations(ctx context.Context) ([]*Organization, error) {
	orgs, err := o.store.ListOrganizations(ctx)
	if err != nil {
		return nil, err
	}

	res := make([]*Organization, 0, len(orgs))
	for _, org := range orgs {
		res = append(res, organizationView(org))
	}

	return res, nil
}

// CreateGroup creates a group inside an existing organization.
func (o *OrganizationService) CreateGroup(ctx context.Context, req CreateGroupRequest) (*Group, error) {
	if err := validateRequired("name", req.Name); err != nil {
		return nil, err
	}

	id, err := newID(req.ID)
	if err != nil {
		return nil, err
	}

	if _, err := o.store.GetOrganization(ctx, req.OrganizationID); err != nil {
		return nil, translate(err, ErrOrganizationNotFound)
	}

	group := &model.Group{
		ID:             id,
		OrganizationID: req.OrganizationID,
		Name:           req.Name,
	}
	if err := o.store.CreateGroup(ctx, group); err != nil {
		return nil, fmt.Errorf("create group: %w", err)
	}

	return groupView(group), nil
}

func (o *OrganizationService) GetGroup(ctx context.Context, id string) (*Group, error) {
	group, err := o.store.GetGroup(ctx, id)
	if err != nil {
		return nil, translate(err, ErrGroupNotFound)
	}

	return groupView(group), nil
}

func (o *OrganizationService) ListGroups(ctx context.Context, organizationID string) ([]*Group, error) {
	if _, err := o.store.GetOrganization(ctx, organizationID); err != nil {
		return nil, translate(err, ErrOrganizationNotFound)
	}

	groups, err := o.store.ListGroups(ctx, organizationID)
	if err != nil {
		return nil, err
	}

	res := make([]*Group, 0, len(groups))
	for _, group := range groups {
		res = append(res, groupView(group))
	}

	return res, nil
}

func organizationView(org *model.Organization) *Organization {
	return &Organization{
		ID:        org.ID,
		Name:      org.Name,
		OwnerID:   org.OwnerID,
		CreatedAt: org.CreatedAt,
	}
}

func groupView(group *model.Group) *Group {
	return &Group{
		ID:             group.ID,
		OrganizationID: group.OrganizationID,
		Name:           group.Name,
		CreatedAt:      group.CreatedAt,
	}
}

// newID returns id when it is a valid uuid, or a fresh uuid when id is empty.
func newID(id string) (string, error) {
	if id == "" {
		return uuid.New().String(), nil
	}

	parsed, err := uuid.Parse(id)
	if err != nil {
		return "", &ValidationError{Field: "id", Message: "expected a valid uuid"}
	}

	return parsed.String(), nil
}

// translate maps a missing record to notFound and leaves other errors as they are.
func translate(err, notFound error) error {
	if errors.Is(err, store.ErrRecordNotFound) {
		return notFound
	}
	return err
}
