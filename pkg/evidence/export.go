// Package evidence produces sealed, exportable evidence bundles for an
// agent's Observer history (spec §4.4f). It fuses two teacher patterns:
// pkg/evidence/exporter.go's sealed-bundle shape (Bundle/Artifact,
// BundleSigner, hash-then-sign sealing) supplies the cryptographic
// envelope, and pkg/audit/export.go's GeneratePack supplies the
// zip-plus-checksum-plus-chain-head packaging a reviewer actually
// downloads. The result is a Bundle whose Zip is the audit-style
// archive and whose BundleHash/Signature are the exporter-style seal
// over that archive's checksum and chain head.
package evidence

import (
	"archive/zip"
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/helmward/agentgov/pkg/observer"
)

var (
	ErrEmptyAgentID        = errors.New("evidence: agent_id must not be empty")
	ErrInvalidTimeRange    = errors.New("evidence: start_time must be before end_time")
	ErrLogNotConfigured    = errors.New("evidence: observer log not configured (fail-closed)")
	ErrSignerNotConfigured = errors.New("evidence: fail-closed: bundle signer not configured")
)

// BundleSigner seals a bundle's digest. KeyringSigner adapts
// pkg/signing.Keyring to this interface.
type BundleSigner interface {
	Sign(data []byte) (string, error)
	PublicKey() string
}

// ExportRequest scopes one export to a single agent and time window.
type ExportRequest struct {
	AgentID   string
	StartTime time.Time
	EndTime   time.Time
}

// Bundle is a sealed, downloadable evidence pack.
type Bundle struct {
	ID                   string    `json:"id"`
	AgentID              string    `json:"agent_id"`
	GeneratedAt          time.Time `json:"generated_at"`
	EventCount           int       `json:"event_count"`
	ChainHead            string    `json:"chain_head"`
	Checksum             string    `json:"checksum"`
	Zip                  []byte    `json:"-"`
	BundleHash           string    `json:"bundle_hash"`
	SignatureKeyID       string    `json:"signature_key_id"`
	SignaturePublicKey   string    `json:"signature_public_key"`
	Signature            string    `json:"signature"`
	SignatureMessageHash string    `json:"signature_message_hash"`
}

// Exporter builds evidence bundles from an Observer log.
type Exporter struct {
	log    *observer.Log
	signer BundleSigner
	keyID  string
	clock  func() time.Time
}

// NewExporter wires an Observer log and the signer used to seal every
// bundle it produces. A nil log means GeneratePack always fails closed.
func NewExporter(log *observer.Log, signer BundleSigner, keyID string) *Exporter {
	return &Exporter{log: log, signer: signer, keyID: keyID, clock: time.Now}
}

// WithClock overrides the exporter's time source for deterministic tests.
func (e *Exporter) WithClock(clock func() time.Time) *Exporter {
	e.clock = clock
	return e
}

// GeneratePack queries the Observer log for req's window, packages the
// matching events into a zip (events.json, manifest.json, README.txt),
// and seals the result with the configured signer.
func (e *Exporter) GeneratePack(ctx context.Context, req ExportRequest) (*Bundle, error) {
	if req.AgentID == "" {
		return nil, ErrEmptyAgentID
	}
	if !req.StartTime.IsZero() && !req.EndTime.IsZero() && req.StartTime.After(req.EndTime) {
		return nil, ErrInvalidTimeRange
	}
	if e.log == nil {
		return nil, ErrLogNotConfigured
	}
	if e.signer == nil || e.keyID == "" {
		return nil, ErrSignerNotConfigured
	}

	filter := observer.QueryFilter{AgentID: req.AgentID}
	if !req.StartTime.IsZero() {
		filter.StartTime = &req.StartTime
	}
	if !req.EndTime.IsZero() {
		filter.EndTime = &req.EndTime
	}
	events := e.log.Query(filter)
	generatedAt := e.clock().UTC()
	chainHead := e.log.ChainHead()

	eventsJSON, err := json.MarshalIndent(events, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("evidence: marshal events: %w", err)
	}

	manifest := map[string]any{
		"agent_id":     req.AgentID,
		"generated_at": generatedAt,
		"event_count":  len(events),
		"chain_head":   chainHead,
		"period": map[string]any{
			"start": req.StartTime,
			"end":   req.EndTime,
		},
	}
	manifestJSON, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("evidence: marshal manifest: %w", err)
	}

	buf := new(bytes.Buffer)
	w := zip.NewWriter(buf)

	f, err := w.Create("events.json")
	if err != nil {
		return nil, err
	}
	if _, err := f.Write(eventsJSON); err != nil {
		return nil, err
	}

	f, err = w.Create("manifest.json")
	if err != nil {
		return nil, err
	}
	if _, err := f.Write(manifestJSON); err != nil {
		return nil, err
	}

	f, err = w.Create("README.txt")
	if err != nil {
		return nil, err
	}
	if _, err := fmt.Fprintf(f, "Evidence pack for agent %s\nGenerated at %s\n", req.AgentID, generatedAt); err != nil {
		return nil, err
	}

	if err := w.Close(); err != nil {
		return nil, err
	}

	zipBytes := buf.Bytes()
	sum := sha256.Sum256(zipBytes)
	checksum := hex.EncodeToString(sum[:])

	bundle := &Bundle{
		ID:          uuid.New().String(),
		AgentID:     req.AgentID,
		GeneratedAt: generatedAt,
		EventCount:  len(events),
		ChainHead:   chainHead,
		Checksum:    checksum,
		Zip:         zipBytes,
	}

	if err := e.sealBundle(bundle); err != nil {
		return nil, err
	}
	return bundle, nil
}

// sealBundle signs a digest over the bundle's identifying fields and the
// archive checksum, not the archive bytes themselves, so the signature
// stays small and independent of export format.
func (e *Exporter) sealBundle(b *Bundle) error {
	payload := struct {
		ID          string    `json:"id"`
		AgentID     string    `json:"agent_id"`
		GeneratedAt time.Time `json:"generated_at"`
		EventCount  int       `json:"event_count"`
		ChainHead   string    `json:"chain_head"`
		Checksum    string    `json:"checksum"`
	}{
		ID:          b.ID,
		AgentID:     b.AgentID,
		GeneratedAt: b.GeneratedAt,
		EventCount:  b.EventCount,
		ChainHead:   b.ChainHead,
		Checksum:    b.Checksum,
	}

	msg, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("evidence: seal marshal failed: %w", err)
	}
	b.SignatureMessageHash = computeHash(msg)
	b.BundleHash = b.SignatureMessageHash

	sig, err := e.signer.Sign(msg)
	if err != nil {
		return fmt.Errorf("evidence: sign failed: %w", err)
	}
	b.Signature = sig
	b.SignatureKeyID = e.keyID
	b.SignaturePublicKey = e.signer.PublicKey()
	return nil
}

func computeHash(data []byte) string {
	sum := sha256.Sum256(data)
	return "sha256:" + hex.EncodeToString(sum[:])
}
