package pipeline

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"recallwatch/internal/events"
	"recallwatch/internal/fetch"
	"recallwatch/internal/identity"
	"recallwatch/internal/logging"
	"recallwatch/internal/metrics"
	"recallwatch/pkg/models"
)

type RecallFetcher interface {
	FetchRecalls(ctx context.Context, collectionID string, q fetch.RecallQuery) ([]models.RawRecord, error)
}

type ComplaintFetcher interface {
	FetchComplaints(ctx context.Context, q fetch.ComplaintQuery) ([]models.RawRecord, error)
}

// Sink is the raw layer the pipeline writes to.
type Sink interface {
	WriteRecalls(ctx context.Context, rows []models.RecallRow) (int, error)
	WriteComplaints(ctx context.Context, rows []models.ComplaintRow) (int, error)
	WriteRun(ctx context.Context, run models.IngestRun) error
}

type Publisher interface {
	Publish(ev events.Event)
}

// Options selects what one run ingests.
type Options struct {
	// RunID names the run; a new uuid is generated when empty.
	RunID string

	Make      string
	Start     string
	End       string
	Model     string
	ModelYear string

	// Categories limits the run. Empty means recalls plus complaints when a
	// model and year are configured. Naming complaints here makes a missing
	// model or year an error instead of a skip.
	Categories []identity.Category
}

func (o Options) wants(c identity.Category) (want, explicit bool) {
	if len(o.Categories) == 0 {
		return true, false
	}
	for _, x := range o.Categories {
		if x == c {
			return true, true
		}
	}
	return false, true
}

// Pipeline runs fetch, map and upsert for each category in sequence.
type Pipeline struct {
	Recalls        RecallFetcher
	Complaints     ComplaintFetcher
	Store          Sink
	RecallsDataset string

	Events  Publisher
	Metrics *metrics.Metrics
	Log     logrus.FieldLogger

	Now   func() time.Time
	NewID func() string
}

func (p *Pipeline) now() time.Time {
	if p.Now != nil {
		return p.Now().UTC()
	}
	return time.Now().UTC()
}

func (p *Pipeline) publish(ev events.Event) {
	if p.Events != nil {
		p.Events.Publish(ev)
	}
}

// Run executes one ingestion. The returned Report is always populated with
// whatever completed, including when err is non-nil.
func (p *Pipeline) Run(ctx context.Context, opts Options) (Report, error) {
	runID := opts.RunID
	if runID == "" {
		newID := p.NewID
		if newID == nil {
			newID = uuid.NewString
		}
		runID = newID()
	}
	rep := Report{IngestRun: models.IngestRun{
		RunID:     runID,
		StartedAt: p.now(),
		Make:      opts.Make,
		StartDate: opts.Start,
		EndDate:   opts.End,
		Status:    models.RunRunning,
	}}
	log := logging.OrDiscard(p.Log).WithFields(logrus.Fields{"run_id": rep.RunID, "make": opts.Make})

	if err := p.Store.WriteRun(ctx, rep.IngestRun); err != nil {
		return p.finish(ctx, log, rep, err)
	}
	p.publish(events.Event{Type: events.RunStarted, RunID: rep.RunID})

	if want, _ := opts.wants(identity.Recalls); want {
		log.WithFields(logrus.Fields{"window": opts.Start + ".." + opts.End}).Info("step 1/2: extract+load recalls")
		if err := p.runRecalls(ctx, log, opts, &rep); err != nil {
			return p.finish(ctx, log, rep, err)
		}
	}

	want, explicit := opts.wants(identity.Complaints)
	model, year := strings.TrimSpace(opts.Model), strings.TrimSpace(opts.ModelYear)
	switch {
	case !want:
	case model == "" || year == "":
		if explicit {
			var missing []string
			if model == "" {
				missing = append(missing, "model")
			}
			if year == "" {
				missing = append(missing, "model_year")
			}
			return p.finish(ctx, log, rep, &ConfigurationError{Category: string(identity.Complaints), Missing: missing})
		}
		rep.ComplaintsSkipped = true
		log.Info("step 2/2: complaints skipped (set RECALLWATCH_MODEL and RECALLWATCH_MODEL_YEAR to enable)")
		p.publish(events.Event{Type: events.ComplaintsSkipped, RunID: rep.RunID, Category: string(identity.Complaints)})
	default:
		log.WithFields(logrus.Fields{"model": model, "model_year": year}).Info("step 2/2: extract+load complaints")
		if err := p.runComplaints(ctx, log, opts, &rep); err != nil {
			return p.finish(ctx, log, rep, err)
		}
	}

	return p.finish(ctx, log, rep, nil)
}

func (p *Pipeline) runRecalls(ctx context.Context, log logrus.FieldLogger, opts Options, rep *Report) error {
	recs, err := p.Recalls.FetchRecalls(ctx, p.RecallsDataset, fetch.RecallQuery{Make: opts.Make, Start: opts.Start, End: opts.End})
	if err != nil {
		return err
	}
	rep.RecallsExtracted = len(recs)
	p.Metrics.AddExtracted(string(identity.Recalls), len(recs))
	p.publish(events.Event{Type: events.ExtractFinished, RunID: rep.RunID, Category: string(identity.Recalls), Count: len(recs)})

	n, err := p.Store.WriteRecalls(ctx, identity.MapRecalls(recs, p.now()))
	if err != nil {
		return err
	}
	rep.RecallsLoaded = n
	log.WithFields(logrus.Fields{"extracted": len(recs), "loaded": n}).Info("recalls loaded")
	p.publish(events.Event{Type: events.LoadFinished, RunID: rep.RunID, Category: string(identity.Recalls), Count: n})
	return nil
}

func (p *Pipeline) runComplaints(ctx context.Context, log logrus.FieldLogger, opts Options, rep *Report) error {
	recs, err := p.Complaints.FetchComplaints(ctx, fetch.ComplaintQuery{
		Make:      opts.Make,
		Model:     strings.TrimSpace(opts.Model),
		ModelYear: strings.TrimSpace(opts.ModelYear),
		Start:     opts.Start,
		End:       opts.End,
	})
	if err != nil {
		return err
	}
	rep.ComplaintsExtracted = len(recs)
	p.Metrics.AddExtracted(string(identity.Complaints), len(recs))
	p.publish(events.Event{Type: events.ExtractFinished, RunID: rep.RunID, Category: string(identity.Complaints), Count: len(recs)})

	n, err := p.Store.WriteComplaints(ctx, identity.MapComplaints(recs, p.now()))
	if err != nil {
		return err
	}
	rep.ComplaintsLoaded = n
	log.WithFields(logrus.Fields{"extracted": len(recs), "loaded": n}).Info("complaints loaded")
	p.publish(events.Event{Type: events.LoadFinished, RunID: rep.RunID, Category: string(identity.Complaints), Count: n})
	return nil
}

// finish stamps the report, records it in the run ledger and emits the final
// event. A ledger failure is returned only when the run itself succeeded.
func (p *Pipeline) finish(ctx context.Context, log logrus.FieldLogger, rep Report, runErr error) (Report, error) {
	fin := p.now()
	rep.FinishedAt = &fin
	rep.Status = models.RunSucceeded
	if runErr != nil {
		rep.Status = models.RunFailed
		rep.Error = runErr.Error()
	}

	// the ledger is written even when the run was cancelled
	ledgerCtx := context.WithoutCancel(ctx)
	if err := p.Store.WriteRun(ledgerCtx, rep.IngestRun); err != nil {
		logging.LogError(log, "write run ledger", nil, err)
		if runErr == nil {
			rep.Status = models.RunFailed
			rep.Error = err.Error()
			runErr = err
		}
	}

	p.Metrics.ObserveRun(rep.Status, float64(fin.Unix()))
	p.publish(events.Event{Type: events.RunFinished, RunID: rep.RunID, Status: rep.Status, Error: rep.Error})

	if runErr != nil {
		var ce *ConfigurationError
		if errors.As(runErr, &ce) {
			log.WithError(runErr).Warn("run stopped on configuration")
		} else {
			logging.LogError(log, "ingest", logrus.Fields{"status": rep.Status}, runErr)
		}
		return rep, runErr
	}
	log.WithFields(logrus.Fields{
		"recalls_loaded":     rep.RecallsLoaded,
		"complaints_loaded":  rep.ComplaintsLoaded,
		"complaints_skipped": rep.ComplaintsSkipped,
	}).Info("run finished")
	return rep, nil
}
