package apiclient

import (
	"context"
	"net/http"

	"github.com/pkg/errors"
)

// Case is a marketplace case as returned by the case-listing endpoints. The
// session subsystem treats it as an opaque resource fetched through the
// authenticated channel.
type Case struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Category    string `json:"category,omitempty"`
	Status      string `json:"status"`
	Client      string `json:"client,omitempty"`
	Lawyer      string `json:"lawyer,omitempty"`
	Updated     string `json:"updated,omitempty"`
}

// Lawyer is a marketplace lawyer profile from the find-lawyer search.
type Lawyer struct {
	ID             string  `json:"id"`
	Name           string  `json:"name"`
	Specialization string  `json:"specialization"`
	Experience     string  `json:"experience"`
	Rating         float64 `json:"rating"`
	CasesHandled   int     `json:"casesHandled"`
	Location       string  `json:"location"`
}

// SubmitCaseRequest is the client-area case submission form.
type SubmitCaseRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Category    string `json:"category,omitempty"`
}

// SubmitCase files a new case for the given client user.
func (c *Client) SubmitCase(ctx context.Context, userID string, req SubmitCaseRequest) error {
	return errors.Wrap(c.do(ctx, http.MethodPost, RouteClientCaseSubmit+"/"+userID, req, nil), "[Client.SubmitCase]")
}

// Cases lists the client user's cases.
func (c *Client) Cases(ctx context.Context, userID string) ([]Case, error) {
	var cases []Case
	if err := c.do(ctx, http.MethodGet, RouteClientCases+"/"+userID, nil, &cases); err != nil {
		return nil, errors.Wrap(err, "[Client.Cases]")
	}
	return cases, nil
}

// FindLawyers searches lawyers by specialization.
func (c *Client) FindLawyers(ctx context.Context, specialization string) ([]Lawyer, error) {
	req := struct {
		Specialization string `json:"specialization"`
	}{Specialization: specialization}

	var payload struct {
		Lawyers []Lawyer `json:"lawyers"`
	}
	if err := c.do(ctx, http.MethodPost, RouteClientFindLawyer, req, &payload); err != nil {
		return nil, errors.Wrap(err, "[Client.FindLawyers]")
	}
	return payload.Lawyers, nil
}

// AssignedCases lists the cases assigned to the authenticated lawyer.
func (c *Client) AssignedCases(ctx context.Context) ([]Case, error) {
	var payload struct {
		AssignedCases []Case `json:"assigned_cases"`
	}
	if err := c.do(ctx, http.MethodGet, RouteLawyerAssignedCases, nil, &payload); err != nil {
		return nil, errors.Wrap(err, "[Client.AssignedCases]")
	}
	return payload.AssignedCases, nil
}

// AvailableCases lists unassigned cases a lawyer can pick up.
func (c *Client) AvailableCases(ctx context.Context) ([]Case, error) {
	var payload struct {
		AvailableCases []Case `json:"available_cases"`
	}
	if err := c.do(ctx, http.MethodGet, RouteLawyerAvailableCase, nil, &payload); err != nil {
		return nil, errors.Wrap(err, "[Client.AvailableCases]")
	}
	return payload.AvailableCases, nil
}

// HandleCase assigns the given case to the authenticated lawyer.
func (c *Client) HandleCase(ctx context.Context, caseID string) error {
	return errors.Wrap(c.do(ctx, http.MethodGet, RouteLawyerHandleCases+"/"+caseID, nil, nil), "[Client.HandleCase]")
}
