package remote

import (
	"context"
	"errors"
	"net/http"

	"github.com/pildhora/pildhora-sync/internal/domain"
)

// DirectoryClient resolves patient display names from the remote store.
type DirectoryClient struct {
	client *Client
}

var _ domain.PatientDirectory = (*DirectoryClient)(nil)

// NewDirectoryClient creates a directory client on top of a remote store client.
func NewDirectoryClient(client *Client) *DirectoryClient {
	return &DirectoryClient{client: client}
}

func (c *DirectoryClient) PatientName(ctx context.Context, patientID string) (string, error) {
	var patient struct {
		ID          string `json:"id"`
		DisplayName string `json:"display_name"`
	}
	err := c.client.do(ctx, http.MethodGet, "/v1/patients/"+patientID, nil, &patient)
	if err != nil {
		var statusErr *StatusError
		if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusNotFound {
			return "", domain.ErrPatientNotFound
		}
		return "", err
	}
	return patient.DisplayName, nil
}
