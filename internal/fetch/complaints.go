package fetch

import (
	"context"
	"fmt"
	"strings"

	"recallwatch/pkg/models"
)

const (
	ComplaintSourceNHTSA   = "nhtsa"
	ComplaintSourceSocrata = "socrata"
)

// ComplaintQuery selects complaints for one vehicle. The vehicle-indexed API
// ignores Start and End.
type ComplaintQuery struct {
	Make      string
	Model     string
	ModelYear string
	Start     string
	End       string
}

// FetchComplaints queries the vehicle-indexed endpoint for q.
func (n *NHTSAClient) FetchComplaints(ctx context.Context, q ComplaintQuery) ([]models.RawRecord, error) {
	return n.FetchByVehicle(ctx, q.Make, q.Model, q.ModelYear)
}

// SocrataComplaints reads complaints from the tabular flat-file dataset
// instead of the vehicle API, filtered on make and received date.
type SocrataComplaints struct {
	Client  *SocrataClient
	Dataset string
}

func (s SocrataComplaints) FetchComplaints(ctx context.Context, q ComplaintQuery) ([]models.RawRecord, error) {
	where := BuildComplaintFilter(q.Make, q.Start, q.End)
	s.Client.log.WithField("dataset", s.Dataset).WithField("where", where).Info("complaint filter")
	return s.Client.FetchPaginated(ctx, s.Dataset, where, s.Client.PageSize, 0)
}

// BuildComplaintFilter matches make exactly (case-insensitive) and bounds
// date_received to [start, end].
func BuildComplaintFilter(mk, start, end string) string {
	var preds []string
	if m := strings.TrimSpace(mk); m != "" {
		preds = append(preds, fmt.Sprintf("upper(make) = '%s'", quote(strings.ToUpper(m))))
	}
	if s := strings.TrimSpace(start); s != "" {
		preds = append(preds, fmt.Sprintf("date_received >= '%sT00:00:00'", quote(s)))
	}
	if e := strings.TrimSpace(end); e != "" {
		preds = append(preds, fmt.Sprintf("date_received < '%sT00:00:00'", quote(nextDay(e))))
	}
	return strings.Join(preds, " AND ")
}
