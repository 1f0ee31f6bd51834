package client

import (
	"context"

	"github.com/harborlight-org/tokend/internal/api"
)

// IssueCheckinOptions describes the check-in token to mint. Appointment
// is a YYYY-MM-DD date in the pantry's timezone.
type IssueCheckinOptions struct {
	Subject       string
	OrgID         string
	Appointment   string
	Points        int
	HouseholdSize int
}

// IssueCheckin mints a pantry check-in token. Requires a session with
// the pantry scheduling entitlement.
func (c *Client) IssueCheckin(ctx context.Context, opts IssueCheckinOptions) (*api.CheckinResponse, string, error) {
	payload := api.PantryCheckinPayload{
		Subject:       opts.Subject,
		OrgID:         opts.OrgID,
		Appointment:   opts.Appointment,
		Points:        opts.Points,
		HouseholdSize: opts.HouseholdSize,
	}
	var resp api.CheckinResponse
	correlation, err := c.post(ctx, c.url().
		setPath(api.PantryCheckinRoute).
		build(), payload, &resp)
	if err != nil {
		return nil, correlation, err
	}
	return &resp, correlation, nil
}
