// Package resolution decides whether a sighting report matches an open case,
// combining the biometric and the textual evidence channel.
package resolution

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/kozaktomas/sightmatch/internal/config"
	"github.com/kozaktomas/sightmatch/internal/database"
	"github.com/kozaktomas/sightmatch/internal/facematch"
	"github.com/kozaktomas/sightmatch/internal/logging"
	"github.com/kozaktomas/sightmatch/internal/notify"
	"github.com/kozaktomas/sightmatch/internal/textmatch"
)

// Deps are the collaborators of an Orchestrator. All are required.
type Deps struct {
	Registry   database.RegistryReader
	Embeddings database.EmbeddingStoreReader
	Recorder   database.SightingRecorder
	Sender     notify.Sender
}

// Orchestrator runs the resolution procedure. It holds no per-call state and
// is safe for concurrent use.
type Orchestrator struct {
	deps      Deps
	text      *textmatch.Resolver
	biometric *facematch.Resolver
	markers   []string
	corrob    float64
	logger    *slog.Logger
}

// New builds an orchestrator whose thresholds come from policy. A nil
// normalizer uses the embedded stopword list.
func New(deps Deps, policy config.Policy, normalizer *textmatch.Normalizer, logger *slog.Logger) (*Orchestrator, error) {
	if deps.Registry == nil || deps.Embeddings == nil || deps.Recorder == nil || deps.Sender == nil {
		return nil, errors.New("registry, embedding store, sighting recorder and sender are required")
	}

	markers := make([]string, 0, len(policy.Text.MarkerKeywords))
	for _, k := range policy.Text.MarkerKeywords {
		if k = strings.ToLower(strings.TrimSpace(k)); k != "" {
			markers = append(markers, k)
		}
	}

	return &Orchestrator{
		deps: deps,
		text: textmatch.NewResolver(textmatch.Options{
			LexicalAccept: policy.Text.LexicalAccept,
			VectorAccept:  policy.Text.VectorAccept,
			Normalizer:    normalizer,
		}),
		biometric: facematch.NewResolver(facematch.Options{
			MaxDistance: policy.Biometric.MaxDistance,
			ANN: facematch.ANNOptions{
				Enabled:      policy.Biometric.ANN.Enabled,
				MinStoreSize: policy.Biometric.ANN.MinStoreSize,
				MaxNeighbors: policy.Biometric.ANN.MaxNeighbors,
				Candidates:   policy.Biometric.ANN.Candidates,
			},
		}),
		markers: markers,
		corrob:  policy.Text.CorroborationThreshold,
		logger:  logging.NewComponentLogger(logger, "resolution"),
	}, nil
}

// HasMarker reports whether details mention a distinguishing-feature keyword.
func (o *Orchestrator) HasMarker(details string) bool {
	lower := strings.ToLower(details)
	for _, k := range o.markers {
		if strings.Contains(lower, k) {
			return true
		}
	}
	return false
}

// Resolve decides report. A report that matches nothing yields a verdict with
// MatchFound false and a nil error; errors are always *CollaboratorError.
func (o *Orchestrator) Resolve(ctx context.Context, report Report) (*Verdict, error) {
	v := &Verdict{Method: MethodNone, Trace: []State{StateStart}}

	var best *facematch.Candidate
	if len(report.Embedding) > 0 {
		snap, err := o.deps.Embeddings.Load(ctx)
		if err != nil {
			return nil, collaboratorErr("load embedding store", err)
		}
		if candidates := o.biometric.Resolve(report.Embedding, snap); len(candidates) > 0 {
			best = &candidates[0]
		}
	}
	v.Trace = append(v.Trace, StateBiometricAttempted)

	hasMarker := o.HasMarker(report.Details)
	var text textmatch.Match
	if hasMarker {
		features, err := o.deps.Registry.DescriptiveFeatures(ctx)
		if err != nil {
			return nil, collaboratorErr("load descriptive features", err)
		}
		records := make([]textmatch.Record, len(features))
		for i, f := range features {
			records[i] = textmatch.Record{Identity: f.Name, Description: f.Description, CaseID: f.CaseID}
		}
		text = o.text.Resolve(report.Details, records)
	}
	v.Trace = append(v.Trace, StateTextAttempted)

	switch {
	case best != nil:
		v.MatchFound = true
		v.Method = MethodBiometric
		v.Identity = best.Identity
		v.Confidence = best.Confidence
		if hasMarker {
			desc, err := o.deps.Registry.Description(ctx, best.Identity)
			if err != nil {
				return nil, collaboratorErr("load description", err)
			}
			if desc != "" {
				v.Corroborated, v.TextScore = o.text.Accepts(report.Details, desc, o.corrob)
			}
		}
	case text.Found:
		v.MatchFound = true
		v.Method = MethodTextual
		v.Identity = text.Record.Identity
		v.CaseID = text.Record.CaseID
		v.TextScore = text.Score
		v.Confidence = text.Score / 100
	}
	v.Trace = append(v.Trace, StateDecided)

	var contact string
	if v.MatchFound {
		if v.CaseID == "" {
			c, err := o.deps.Registry.CaseByName(ctx, v.Identity)
			if err != nil {
				return nil, collaboratorErr("load case", err)
			}
			if c != nil {
				v.CaseID = c.CaseID
			}
		}

		locations, err := o.deps.Registry.RecentSightingLocations(ctx, v.Identity)
		if err != nil {
			return nil, collaboratorErr("load sightings", err)
		}
		v.LastSeenLocation = database.UnknownLocation
		if len(locations) > 0 && strings.TrimSpace(locations[0]) != "" {
			v.LastSeenLocation = locations[0]
		}

		if contact, err = o.deps.Registry.Contact(ctx, v.Identity); err != nil {
			return nil, collaboratorErr("load contact", err)
		}
	}

	if report.Location != "" && report.ReporterName != "" && report.ReporterPhone != "" {
		name := report.ClaimedName
		if name == "" {
			name = v.Identity
		}
		err := o.deps.Recorder.RecordSighting(ctx, database.Sighting{
			Name:          name,
			Location:      report.Location,
			ReporterName:  report.ReporterName,
			ReporterPhone: report.ReporterPhone,
			Details:       report.Details,
			CreatedAt:     report.ReportedAt,
		})
		if err != nil {
			return nil, collaboratorErr("record sighting", err)
		}
		v.Recorded = true
	}

	if v.MatchFound && contact != "" {
		sent, err := o.deps.Sender.NotifyMatch(ctx, notify.Match{
			Contact:       contact,
			Identity:      v.Identity,
			Location:      report.Location,
			ReporterName:  report.ReporterName,
			ReporterPhone: report.ReporterPhone,
		})
		if err != nil {
			return nil, collaboratorErr("notify contact", err)
		}
		v.NotificationSent = sent
	}

	o.log(v)
	return v, nil
}

func (o *Orchestrator) log(v *Verdict) {
	if !v.MatchFound {
		o.logger.Info("no match", "recorded", v.Recorded)
		return
	}
	o.logger.Info("match",
		logging.FieldIdentity, v.Identity,
		logging.FieldMethod, string(v.Method),
		logging.FieldCaseID, v.CaseID,
		"confidence", v.Confidence,
		"corroborated", v.Corroborated,
		"notification_sent", v.NotificationSent)
}
