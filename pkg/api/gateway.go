package api

import (
	"context"
	"fmt"

	"github.com/zdunecki/internnav/pkg/wizard"
)

// WizardGateway submits a wizard's answers for one user.
type WizardGateway struct {
	Client   *Client
	Path     string
	Email    string
	Fallback string
}

// NewWizardGateway targets the endpoint declared by the catalog.
func NewWizardGateway(client *Client, catalog *wizard.Catalog, email string) (*WizardGateway, error) {
	sub := catalog.Submission()
	if sub.Path == "" {
		return nil, fmt.Errorf("catalog %s has no submit path", catalog.Name())
	}
	fallback := sub.Failure
	if fallback == "" {
		fallback = "Failed to save."
	}
	return &WizardGateway{Client: client, Path: sub.Path, Email: email, Fallback: fallback}, nil
}

func (g *WizardGateway) Submit(ctx context.Context, body map[string]any) error {
	return g.Client.PostAnswers(ctx, g.Path, g.Email, body, g.Fallback)
}

var _ wizard.Gateway = (*WizardGateway)(nil)
