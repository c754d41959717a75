package remote

import (
	"context"
	"errors"
	"net/http"

	"github.com/pildhora/pildhora-sync/internal/domain"
)

// MedicationClient implements domain.MedicationRepository against the remote
// store's medication endpoints. It backs the agent's primary actions, so its
// errors surface directly to the caller.
type MedicationClient struct {
	client *Client
}

var _ domain.MedicationRepository = (*MedicationClient)(nil)

// NewMedicationClient creates a medication client on top of a remote store client.
func NewMedicationClient(client *Client) *MedicationClient {
	return &MedicationClient{client: client}
}

func (c *MedicationClient) SaveMedication(ctx context.Context, med domain.Medication) error {
	return c.client.do(ctx, http.MethodPut, "/v1/medications/"+med.ID, med, nil)
}

func (c *MedicationClient) GetMedication(ctx context.Context, id string) (domain.Medication, error) {
	var med domain.Medication
	err := c.client.do(ctx, http.MethodGet, "/v1/medications/"+id, nil, &med)
	if err != nil {
		var statusErr *StatusError
		if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusNotFound {
			return domain.Medication{}, domain.ErrMedicationNotFound
		}
		return domain.Medication{}, err
	}
	return med, nil
}

func (c *MedicationClient) DeleteMedication(ctx context.Context, id string) error {
	err := c.client.do(ctx, http.MethodDelete, "/v1/medications/"+id, nil, nil)
	if err != nil {
		var statusErr *StatusError
		if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusNotFound {
			return domain.ErrMedicationNotFound
		}
		return err
	}
	return nil
}
