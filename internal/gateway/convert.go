package gateway

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/coder/websocket"

	"github.com/flemzord/epcisconv/internal/audit"
	"github.com/flemzord/epcisconv/internal/nsctx"
	"github.com/flemzord/epcisconv/internal/router"
	"github.com/flemzord/epcisconv/internal/source"
)

// convertRequest is the JSON envelope for POST /v1/convert and
// /v1/convert/events: the conversion spec alongside the document body.
type convertRequest struct {
	FromFmt              string `json:"from_fmt"`
	FromRev              string `json:"from_rev"`
	ToFmt                string `json:"to_fmt"`
	ToRev                string `json:"to_rev"`
	NormalizeToLegacyIDs bool   `json:"normalize_to_legacy_ids"`
	Document             string `json:"document"`
}

func (r convertRequest) toSpec() router.ConversionSpec {
	return router.ConversionSpec{
		FromFmt:              router.Format(r.FromFmt),
		FromRev:              router.Revision(r.FromRev),
		ToFmt:                router.Format(r.ToFmt),
		ToRev:                router.Revision(r.ToRev),
		NormalizeToLegacyIDs: r.NormalizeToLegacyIDs,
	}
}

// statusFor maps a router.ConversionError's Kind to an HTTP status code.
func statusFor(err error) int {
	var cerr *router.ConversionError
	if !errors.As(err, &cerr) {
		return http.StatusInternalServerError
	}
	switch cerr.Kind {
	case router.InvalidArgument, router.Unsupported, router.MalformedInput:
		return http.StatusBadRequest
	case router.ResourceExhausted:
		return http.StatusServiceUnavailable
	default:
		return http.StatusUnprocessableEntity
	}
}

func writeError(w http.ResponseWriter, err error) {
	writeErrorStatus(w, statusFor(err), err)
}

func writeErrorStatus(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}

// handleConvert serves POST /v1/convert: reads a whole document and
// spec from the request body and returns the fully converted document.
func (g *Gateway) handleConvert() http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		ctx := req.Context()
		start := time.Now()

		var body convertRequest
		if err := json.NewDecoder(io.LimitReader(req.Body, maxBodyBytes)).Decode(&body); err != nil {
			writeErrorStatus(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
			return
		}
		spec := body.toSpec()

		obs := g.metrics.Start(body.FromFmt, body.FromRev, body.ToFmt, body.ToRev)

		src := source.FromBytes([]byte(body.Document))
		result, err := g.router.Convert(ctx, src, spec)
		if err != nil {
			obs.Done("failed", 0)
			g.recordAudit(ctx, auditEntryFor(result, body, 0, elapsedSince(start), "failed", err))
			writeError(w, err)
			return
		}

		w.Header().Set("Content-Type", result.ContentType)
		w.Header().Set("X-Correlation-ID", result.CorrelationID)
		n, err := drainTo(ctx, w, result)
		resultStatus := "completed"
		if err != nil {
			resultStatus = "failed"
		}
		obs.Done(resultStatus, len(body.Document))
		g.recordAudit(ctx, auditEntryFor(result, body, n, elapsedSince(start), resultStatus, err))
	}
}

// handleConvertEvents serves POST /v1/convert/events: the same input
// envelope as handleConvert, but returns one JSON object per converted
// event (newline-delimited) instead of a re-serialized document.
func (g *Gateway) handleConvertEvents() http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		ctx := req.Context()

		var body convertRequest
		if err := json.NewDecoder(io.LimitReader(req.Body, maxBodyBytes)).Decode(&body); err != nil {
			writeErrorStatus(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
			return
		}
		spec := body.toSpec()

		src := source.FromBytes([]byte(body.Document))
		events, err := g.router.ConvertToEvents(ctx, src, spec)
		if err != nil {
			writeError(w, err)
			return
		}

		w.Header().Set("Content-Type", "application/x-ndjson")
		bw := bufio.NewWriter(w)
		for {
			ev, err, ok := events.Next(ctx)
			if err != nil {
				_ = bw.Flush()
				return
			}
			if !ok {
				break
			}
			node, err := ev.WriteObject(nsctx.New())
			if err != nil {
				continue
			}
			payload, err := node.MarshalJSON()
			if err != nil {
				continue
			}
			_, _ = bw.Write(payload)
			_ = bw.WriteByte('\n')
		}
		_ = bw.Flush()
	}
}

// handleConvertWS serves GET /v1/convert/ws: the spec travels as query
// parameters, the document body as the single binary frame the client
// sends after connecting, and converted chunks stream back as they are
// produced rather than after the whole document has been buffered.
func (g *Gateway) handleConvertWS() http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		c, err := websocket.Accept(w, req, nil)
		if err != nil {
			return
		}
		defer func() { _ = c.CloseNow() }()

		ctx := req.Context()
		q := req.URL.Query()
		spec := router.ConversionSpec{
			FromFmt: router.Format(q.Get("from_fmt")),
			FromRev: router.Revision(q.Get("from_rev")),
			ToFmt:   router.Format(q.Get("to_fmt")),
			ToRev:   router.Revision(q.Get("to_rev")),
		}

		_, document, err := c.Read(ctx)
		if err != nil {
			_ = c.Close(websocket.StatusPolicyViolation, "expected document frame")
			return
		}

		src := source.FromBytes(document)
		result, err := g.router.Convert(ctx, src, spec)
		if err != nil {
			_ = c.Close(websocket.StatusInternalError, err.Error())
			return
		}

		for {
			chunk, err, ok := result.Chunks.Next(ctx)
			if err != nil {
				_ = c.Close(websocket.StatusInternalError, err.Error())
				return
			}
			if !ok {
				break
			}
			if err := c.Write(ctx, websocket.MessageBinary, chunk.Data); err != nil {
				return
			}
		}
		_ = c.Close(websocket.StatusNormalClosure, "")
	}
}

// drainTo writes every chunk of result.Chunks to w, returning the total
// byte count written.
func drainTo(ctx context.Context, w io.Writer, result router.Result) (int, error) {
	total := 0
	for {
		c, err, ok := result.Chunks.Next(ctx)
		if err != nil {
			return total, err
		}
		if !ok {
			return total, nil
		}
		n, err := w.Write(c.Data)
		total += n
		if err != nil {
			return total, err
		}
	}
}

func auditEntryFor(result router.Result, body convertRequest, bytesOut int, d time.Duration, status string, err error) audit.Entry {
	return audit.Entry{
		CorrelationID: result.CorrelationID,
		FromFmt:       body.FromFmt,
		FromRev:       body.FromRev,
		ToFmt:         body.ToFmt,
		ToRev:         body.ToRev,
		BytesIn:       int64(len(body.Document)),
		BytesOut:      int64(bytesOut),
		Duration:      d,
		Result:        status,
		Err:           err,
	}
}
