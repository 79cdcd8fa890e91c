package pipeline

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/ziadkadry99/member-insights/internal/config"
	"github.com/ziadkadry99/member-insights/internal/contextbuild"
	"github.com/ziadkadry99/member-insights/internal/insight"
	"github.com/ziadkadry99/member-insights/internal/llm"
	"github.com/ziadkadry99/member-insights/internal/logger"
	"github.com/ziadkadry99/member-insights/internal/warehouse"
)

// processorVersion is recorded on consumed evidence rows.
const processorVersion = "1.0.0"

// Completer is the model-call contract the processor consumes.
type Completer interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (*llm.CompletionResponse, error)
}

// InsightWriter is the versioned-store contract the processor consumes.
type InsightWriter interface {
	GetLatest(ctx context.Context, contactID string) (*insight.StructuredInsight, error)
	ProcessInsight(ctx context.Context, contactID, compositeENIID string, sections insight.Sections, meta insight.Metadata) (*insight.StructuredInsight, bool)
}

// Mirror pushes the latest insight for a contact to an external
// relationship-management surface.
type Mirror interface {
	UpsertLinkedRecord(ctx context.Context, contactID string, sections insight.Sections) error
}

// Exporter writes a copy of each stored insight to local files.
type Exporter interface {
	WriteInsight(ins *insight.StructuredInsight) error
}

// Processor drives one contact at a time through the group loop:
// enumerate partitions, build a budgeted prompt per group, call the
// model, parse, persist a new version, and mark consumed rows. Groups
// within a contact run strictly sequentially; later groups see the
// summary written by earlier ones.
type Processor struct {
	cfg      *config.Config
	log      *logger.Logger
	wh       warehouse.Connector
	store    InsightWriter
	client   Completer
	builder  *contextbuild.Builder
	template string
	mirror   Mirror
	exporter Exporter

	// guarded by contextMu; ProcessContact runs on multiple workers.
	contextMu    sync.Mutex
	contextCache map[string]string
}

// NewProcessor wires a processor. mirror and exporter may be nil.
func NewProcessor(cfg *config.Config, log *logger.Logger, wh warehouse.Connector, store InsightWriter, client Completer, template string, mirror Mirror, exporter Exporter) *Processor {
	return &Processor{
		cfg:          cfg,
		log:          log,
		wh:           wh,
		store:        store,
		client:       client,
		builder:      contextbuild.NewBuilder(cfg.Processing),
		template:     template,
		mirror:       mirror,
		exporter:     exporter,
		contextCache: make(map[string]string),
	}
}

// ProcessContact runs the full group loop for one contact. A group
// whose model call or storage fails is recorded and skipped; only a
// failure to enumerate or fetch the contact's work marks the contact
// failed.
func (p *Processor) ProcessContact(ctx context.Context, contactID string) ContactOutcome {
	start := time.Now()
	outcome := ContactOutcome{ContactID: contactID, Status: StatusSuccess}
	log := p.log.With("contact_id", contactID)

	combos, err := p.wh.Combinations(ctx, contactID)
	if err != nil {
		log.Error("failed to enumerate partitions", "error", err)
		outcome.Status = StatusFailed
		outcome.Errors = append(outcome.Errors, err.Error())
		outcome.Duration = time.Since(start)
		return outcome
	}

	stored := 0
	for _, combo := range combos {
		if !p.cfg.AllowedSubtype(combo.SourceType, combo.SourceSubtype) {
			log.Debug("subtype not allow-listed, skipping partition",
				"source_type", combo.SourceType, "source_subtype", combo.SourceSubtype)
			continue
		}

		res, hardErr := p.processGroup(ctx, log, contactID, combo)
		if res != nil {
			outcome.Groups = append(outcome.Groups, *res)
			outcome.EvidenceRows += res.RowsUsed
			outcome.EstInputTokens += res.EstInputTokens
			outcome.EstOutputTokens += res.EstOutputTokens
			if res.Error != "" {
				outcome.Errors = append(outcome.Errors, res.Error)
			}
			if res.Version > 0 {
				stored++
			}
		}
		if hardErr != nil {
			outcome.Status = StatusFailed
			outcome.Errors = append(outcome.Errors, hardErr.Error())
		}
	}

	if stored > 0 && p.mirror != nil {
		p.pushMirror(ctx, log, contactID)
	}

	outcome.Duration = time.Since(start)
	log.Info("contact processed",
		"status", outcome.Status,
		"groups", len(outcome.Groups),
		"evidence_rows", outcome.EvidenceRows,
		"duration", outcome.Duration)
	return outcome
}

// processGroup handles one partition. The returned error is a hard
// error (contact-level failure); recoverable trouble is carried in the
// GroupResult instead.
func (p *Processor) processGroup(ctx context.Context, log *logger.Logger, contactID string, combo warehouse.TypeSubtype) (*GroupResult, error) {
	rows, err := p.wh.FetchRows(ctx, contactID, combo.SourceType, combo.SourceSubtype)
	if err != nil {
		return nil, fmt.Errorf("fetching rows for %s/%s: %w", combo.SourceType, combo.SourceSubtype, err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	group := insight.Group{
		ContactID:     contactID,
		SourceType:    combo.SourceType,
		SourceSubtype: combo.SourceSubtype,
		Rows:          rows,
	}
	res := GroupResult{
		SourceType:     combo.SourceType,
		SourceSubtype:  combo.SourceSubtype,
		CompositeENIID: group.CompositeENIID(),
		RowsTotal:      len(rows),
	}

	prior, err := p.store.GetLatest(ctx, contactID)
	if err != nil {
		log.Warn("failed to load prior summary, building without it", "error", err)
	}
	priorText := insight.ScaffoldMarkdown()
	if prior != nil && !prior.Sections.IsEmpty() {
		priorText = prior.Sections.Markdown()
	}

	bundle := p.builder.Build(contextbuild.Input{
		ContactID:      contactID,
		SourceType:     combo.SourceType,
		SourceSubtype:  combo.SourceSubtype,
		Rows:           rows,
		PriorSummary:   priorText,
		TypeContext:    p.loadContext(p.typeContextPath(combo.SourceType)),
		SubtypeContext: p.loadContext(p.subtypeContextPath(combo.SourceType, combo.SourceSubtype)),
		Template:       p.template,
	})
	res.RowsUsed = bundle.RowsUsed
	res.EstInputTokens = bundle.TokenStats.TotalRenderedTokens

	callStart := time.Now()
	resp, err := p.client.Complete(ctx, "", bundle.RenderedPrompt)
	if err != nil {
		log.Warn("no model output for partition",
			"source_type", combo.SourceType, "source_subtype", combo.SourceSubtype, "error", err)
		res.Error = fmt.Sprintf("%s/%s: %v", combo.SourceType, combo.SourceSubtype, err)
		return &res, nil
	}
	generationSeconds := time.Since(callStart).Seconds()

	parsed := insight.Parse(resp.Content)
	res.ParseOutcome = string(parsed.Outcome)
	if parsed.Outcome == insight.Unparsed {
		log.Warn("model output not parseable, storing empty sections",
			"source_type", combo.SourceType, "source_subtype", combo.SourceSubtype)
	}

	outputTokens := resp.OutputTokens
	if outputTokens == 0 {
		outputTokens = llm.EstimateTokens(resp.Content)
	}
	res.EstOutputTokens = outputTokens

	ins, created := p.store.ProcessInsight(ctx, contactID, res.CompositeENIID, parsed.Sections, insight.Metadata{
		SourceType:            combo.SourceType,
		SourceSubtype:         combo.SourceSubtype,
		RecordCount:           bundle.RowsUsed,
		TotalSourceIDs:        bundle.RowsTotal,
		EstInputTokens:        bundle.TokenStats.TotalRenderedTokens,
		EstOutputTokens:       outputTokens,
		GenerationTimeSeconds: generationSeconds,
	})
	if !created {
		res.Error = fmt.Sprintf("%s/%s: storing insight failed", combo.SourceType, combo.SourceSubtype)
		return &res, nil
	}
	res.Version = ins.Version

	marks := make([]warehouse.MarkRecord, 0, bundle.RowsUsed)
	for _, row := range rows[:bundle.RowsUsed] {
		marks = append(marks, warehouse.MarkRecord{
			ENIID:            row.ENIID,
			ContactID:        contactID,
			Status:           "completed",
			ProcessorVersion: processorVersion,
		})
	}
	if success, fail := p.wh.MarkProcessed(ctx, marks); fail > 0 {
		log.Warn("some evidence rows not marked processed",
			"marked", success, "failed", fail)
	}

	if p.exporter != nil {
		if err := p.exporter.WriteInsight(ins); err != nil {
			log.Warn("failed to export insight files", "version", ins.Version, "error", err)
		}
	}

	return &res, nil
}

func (p *Processor) pushMirror(ctx context.Context, log *logger.Logger, contactID string) {
	latest, err := p.store.GetLatest(ctx, contactID)
	if err != nil || latest == nil {
		log.Warn("skipping mirror push, latest insight unavailable", "error", err)
		return
	}
	if err := p.mirror.UpsertLinkedRecord(ctx, contactID, latest.Sections); err != nil {
		log.Warn("mirror push failed", "error", err)
	}
}

func (p *Processor) typeContextPath(sourceType string) string {
	return p.cfg.ContextFiles[sourceType].Default
}

func (p *Processor) subtypeContextPath(sourceType, sourceSubtype string) string {
	return p.cfg.ContextFiles[sourceType].Subtypes[sourceSubtype]
}

// loadContext reads a static reference file, memoizing per path. A
// missing or unreadable file degrades to empty context.
func (p *Processor) loadContext(path string) string {
	if path == "" {
		return ""
	}
	p.contextMu.Lock()
	defer p.contextMu.Unlock()
	if cached, ok := p.contextCache[path]; ok {
		return cached
	}
	data, err := os.ReadFile(path)
	if err != nil {
		p.log.Warn("failed to read context file", "path", path, "error", err)
		p.contextCache[path] = ""
		return ""
	}
	p.contextCache[path] = string(data)
	return string(data)
}
