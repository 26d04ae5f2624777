// Package router selects and composes the conversion pipeline for a
// requested (from_fmt, from_rev, to_fmt, to_rev) tuple: the tag-stream
// and object-stream converters, the compiled revision templates, and the
// identifier normalizer, offloading blocking stages to a worker pool.
package router

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/flemzord/epcisconv/internal/chunk"
	"github.com/flemzord/epcisconv/internal/convert"
	"github.com/flemzord/epcisconv/internal/epcisevent"
	"github.com/flemzord/epcisconv/internal/identifier"
	"github.com/flemzord/epcisconv/internal/nsctx"
	"github.com/flemzord/epcisconv/internal/objectstream"
	"github.com/flemzord/epcisconv/internal/pipe"
	"github.com/flemzord/epcisconv/internal/revision"
	"github.com/flemzord/epcisconv/internal/source"
	"github.com/flemzord/epcisconv/internal/stream"
	"github.com/flemzord/epcisconv/internal/tagstream"
	"github.com/flemzord/epcisconv/internal/workerpool"
)

// Router composes the pipeline named by a ConversionSpec from the B/F/G/H
// stages and offloads its blocking work to a configured worker pool.
// A zero-value Router is usable; With* builders return a sibling router
// rather than mutating the receiver.
type Router struct {
	chunkSize  int
	pool       workerpool.Submitter
	normalizer epcisevent.Normalizer
	logger     *slog.Logger

	// warnPoolOnce is a pointer so that every sibling Router produced by
	// With* from the same New() call shares it: the missing-pool warning
	// still fires exactly once for the router the caller actually holds,
	// no matter how many With* calls build it up before first use.
	warnPoolOnce *sync.Once
}

// New builds a Router with the default chunk size and no worker pool (so
// blocking stages run on the caller's own goroutine).
func New() *Router {
	return &Router{
		chunkSize:    chunk.DefaultSize,
		logger:       slog.Default(),
		warnPoolOnce: &sync.Once{},
	}
}

// WithChunkSize returns a sibling router emitting size-byte chunks.
func (r Router) WithChunkSize(size int) *Router {
	r.chunkSize = size
	return &r
}

// WithNormalizer returns a sibling router applying fn to every event
// before serialization, overriding the default URN/Digital-Link choice.
func (r Router) WithNormalizer(fn epcisevent.Normalizer) *Router {
	r.normalizer = fn
	return &r
}

// WithWorkerPool returns a sibling router offloading blocking stages to
// pool. A DirectPool is accepted but defeats blocking isolation — pass
// one only for tests or a deliberately synchronous caller.
func (r Router) WithWorkerPool(pool workerpool.Submitter) *Router {
	r.pool = pool
	return &r
}

// WithLogger returns a sibling router logging through logger instead of
// slog.Default().
func (r Router) WithLogger(logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	r.logger = logger
	return &r
}

// log returns the router's logger, defaulting to slog.Default() for a
// zero-value Router.
func (r *Router) log() *slog.Logger {
	if r.logger == nil {
		return slog.Default()
	}
	return r.logger
}

// warnMissingPool logs, once per Router instance, that no worker pool is
// configured and blocking stages (the revision transformer, chiefly)
// will run on the caller's own goroutine instead of being isolated.
func (r *Router) warnMissingPool() {
	if r.pool != nil {
		return
	}
	once := r.warnPoolOnce
	if once == nil {
		once = &sync.Once{}
	}
	once.Do(func() {
		r.log().Warn("router: no worker pool configured, blocking conversion stages will run on the caller's goroutine")
	})
}

// Result is the outcome of a successful Convert call: a lazily-produced
// chunk sequence, the content type to report for it, and a correlation
// ID a caller can thread through its own logs.
type Result struct {
	Chunks        stream.Seq[chunk.Chunk]
	ContentType   string
	CorrelationID string

	warnings func() []objectstream.Warning
}

// Warnings returns the recoverable warnings recorded while producing
// Chunks (e.g. a late @context restart). Callers should only inspect
// this after Chunks has been fully drained.
func (res Result) Warnings() []objectstream.Warning {
	if res.warnings == nil {
		return nil
	}
	return res.warnings()
}

func contentType(f Format) string {
	if f == Tag {
		return "application/xml"
	}
	return "application/ld+json"
}

// Convert selects and runs the pipeline for spec over src, returning a
// chunk sequence. The object->object and object->tag 2.0 pipelines read
// src only as the caller pulls from Result.Chunks; every other pipeline
// reads all of src before Convert returns.
func (r *Router) Convert(ctx context.Context, src *source.Source, spec ConversionSpec) (Result, error) {
	spec = spec.resolved()
	if err := spec.validate(); err != nil {
		return Result{}, err
	}
	r.warnMissingPool()

	correlationID := uuid.NewString()
	normalizer := r.normalizer
	if normalizer == nil {
		normalizer = defaultNormalizer(spec.ToRev)
	}

	chunks, warnings, err := r.route(ctx, src, spec, normalizer)
	if err != nil {
		r.log().Warn("router: conversion rejected", "error", err,
			"from_fmt", spec.FromFmt, "from_rev", spec.FromRev,
			"to_fmt", spec.ToFmt, "to_rev", spec.ToRev)
		return Result{}, err
	}

	cfg := chunk.Config{Size: r.chunkSize}
	rechunked, err := chunk.Rechunk(chunks, cfg)
	if err != nil {
		return Result{}, newError(InvalidArgument, err)
	}

	r.log().Info("router: conversion started",
		"correlation_id", correlationID,
		"from_fmt", spec.FromFmt, "from_rev", spec.FromRev,
		"to_fmt", spec.ToFmt, "to_rev", spec.ToRev)

	return Result{
		Chunks:        rechunked,
		ContentType:   contentType(spec.ToFmt),
		CorrelationID: correlationID,
		warnings:      warnings,
	}, nil
}

// ConvertToEvents runs the same routing decision as Convert but stops
// short of re-serialization, yielding the parsed Event stream instead.
// Only pipelines whose input format is tag or object (i.e. every
// supported pair) are eligible; the target format/revision still governs
// which normalizer runs, since normalization happens before the point
// where Convert would have serialized.
func (r *Router) ConvertToEvents(ctx context.Context, src *source.Source, spec ConversionSpec) (stream.Seq[*epcisevent.Event], error) {
	spec = spec.resolved()
	if err := spec.validate(); err != nil {
		return stream.Seq[*epcisevent.Event]{}, err
	}
	r.warnMissingPool()

	normalizer := r.normalizer
	if normalizer == nil {
		normalizer = defaultNormalizer(spec.ToRev)
	}

	switch spec.FromFmt {
	case Tag:
		input, err := collectBytes(ctx, src)
		if err != nil {
			return stream.Seq[*epcisevent.Event]{}, newError(IoFailed, err)
		}
		return tagEvents(ctx, input, normalizer)
	case Object:
		if spec.FromRev != "" && spec.FromRev != Rev20 {
			return stream.Seq[*epcisevent.Event]{}, unsupportedError(spec)
		}
		return objectEvents(ctx, src, normalizer)
	default:
		return stream.Seq[*epcisevent.Event]{}, unsupportedError(spec)
	}
}

// defaultNormalizer picks the URN form for a 1.x target and the
// Digital-Link form otherwise, per the routing table's default.
func defaultNormalizer(toRev Revision) epcisevent.Normalizer {
	if isOneX(toRev) {
		return identifier.ToURN
	}
	return identifier.ToDigitalLink
}

func collectBytes(ctx context.Context, src *source.Source) ([]byte, error) {
	chunks, err := stream.Collect(ctx, src.AsByteSequence(ctx))
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	for _, c := range chunks {
		buf.Write(c.Data)
	}
	return buf.Bytes(), nil
}

// route dispatches spec to its pipeline and returns the chunk sequence
// plus an (optional) accessor for warnings recorded during production.
func (r *Router) route(ctx context.Context, src *source.Source, spec ConversionSpec, normalizer epcisevent.Normalizer) (stream.Seq[chunk.Chunk], func() []objectstream.Warning, error) {
	switch {
	case spec.FromFmt == Tag && spec.ToFmt == Tag:
		return r.routeTagToTag(ctx, src, spec, normalizer)

	case spec.FromFmt == Tag && spec.ToFmt == Object:
		return r.routeTagToObject(ctx, src, spec, normalizer)

	case spec.FromFmt == Object && spec.ToFmt == Tag:
		return r.routeObjectToTag(ctx, src, spec, normalizer)

	case spec.FromFmt == Object && spec.ToFmt == Object:
		return r.routeObjectToObject(ctx, src, spec)

	default:
		return stream.Seq[chunk.Chunk]{}, nil, unsupportedError(spec)
	}
}

func (r *Router) routeTagToTag(ctx context.Context, src *source.Source, spec ConversionSpec, normalizer epcisevent.Normalizer) (stream.Seq[chunk.Chunk], func() []objectstream.Warning, error) {
	input, err := collectBytes(ctx, src)
	if err != nil {
		return stream.Seq[chunk.Chunk]{}, nil, newError(IoFailed, err)
	}
	fromRev := spec.FromRev
	if fromRev == "" {
		fromRev = detectTagRevision(input)
	}

	if fromRev == spec.ToRev {
		return stream.New(func(context.Context) (chunk.Chunk, error, bool) {
			if len(input) == 0 {
				return chunk.Chunk{}, nil, false
			}
			out := input
			input = nil
			return chunk.Chunk{Data: out}, nil, true
		}), nil, nil
	}

	// The compiled revision templates natively cover 1.x->2.0 and
	// 2.0->1.2; every other pair (1.1<->1.2, 2.0->1.1) is served by
	// re-deriving through the event model.
	if fromRev == Rev11 || fromRev == Rev12 {
		if spec.ToRev == Rev20 {
			return runTransform(ctx, r.pool, input, string(fromRev), string(spec.ToRev), revision.Flags{})
		}
	}
	if fromRev == Rev20 && spec.ToRev == Rev12 {
		return runTransform(ctx, r.pool, input, string(fromRev), string(spec.ToRev), revision.Flags{
			IncludeAssociationEvent:      spec.NormalizeToLegacyIDs,
			IncludePersistentDisposition: spec.NormalizeToLegacyIDs,
			IncludeSensorElementList:     spec.NormalizeToLegacyIDs,
		})
	}

	c := &convert.TagToTag{Normalizer: normalizer}
	return c.Convert(ctx, input, string(spec.ToRev)), nil, nil
}

func runTransform(ctx context.Context, pool workerpool.Submitter, input []byte, fromRev, toRev string, flags revision.Flags) (stream.Seq[chunk.Chunk], func() []objectstream.Warning, error) {
	out, err := workerpool.Run(ctx, pool, func() ([]byte, error) {
		return revision.Transform(input, fromRev, toRev, flags)
	})
	if err != nil {
		return stream.Seq[chunk.Chunk]{}, nil, newError(TransformFailed, err)
	}
	return stream.New(func(context.Context) (chunk.Chunk, error, bool) {
		if len(out) == 0 {
			return chunk.Chunk{}, nil, false
		}
		data := out
		out = nil
		return chunk.Chunk{Data: data}, nil, true
	}), nil, nil
}

func (r *Router) routeTagToObject(ctx context.Context, src *source.Source, spec ConversionSpec, normalizer epcisevent.Normalizer) (stream.Seq[chunk.Chunk], func() []objectstream.Warning, error) {
	if spec.ToRev != Rev20 {
		return stream.Seq[chunk.Chunk]{}, nil, unsupportedError(spec)
	}
	input, err := collectBytes(ctx, src)
	if err != nil {
		return stream.Seq[chunk.Chunk]{}, nil, newError(IoFailed, err)
	}
	fromRev := spec.FromRev
	if fromRev == "" {
		fromRev = detectTagRevision(input)
	}

	g := &convert.TagToObject{Normalizer: normalizer}
	if fromRev == Rev20 {
		return g.Convert(ctx, input), nil, nil
	}
	if fromRev != Rev11 && fromRev != Rev12 {
		return stream.Seq[chunk.Chunk]{}, nil, unsupportedError(spec)
	}

	// 1.x -> object/2.0 runs F(1.x->2.0) on the pool through pipe.Chain,
	// collects its whole output, then hands it to G.
	seq := pipe.Chain(ctx, r.pool, func(ctx context.Context, w io.Writer) error {
		upgraded, err := revision.Transform(input, string(fromRev), string(Rev20), revision.Flags{})
		if err != nil {
			return err
		}
		_, err = w.Write(upgraded)
		return err
	})
	upgraded, err := stream.Collect(ctx, seq)
	if err != nil {
		return stream.Seq[chunk.Chunk]{}, nil, newError(TransformFailed, err)
	}
	var buf bytes.Buffer
	for _, c := range upgraded {
		buf.Write(c.Data)
	}
	return g.Convert(ctx, buf.Bytes()), nil, nil
}

func (r *Router) routeObjectToTag(ctx context.Context, src *source.Source, spec ConversionSpec, normalizer epcisevent.Normalizer) (stream.Seq[chunk.Chunk], func() []objectstream.Warning, error) {
	if spec.FromRev != "" && spec.FromRev != Rev20 {
		return stream.Seq[chunk.Chunk]{}, nil, unsupportedError(spec)
	}
	h := &convert.ObjectToTag{Normalizer: normalizer}

	switch spec.ToRev {
	case Rev20:
		return h.Convert(ctx, src), h.Warnings, nil
	case Rev12:
		seq := pipe.Chain(ctx, r.pool, func(ctx context.Context, w io.Writer) error {
			return pipe.WriteSeq(ctx, w, h.Convert(ctx, src))
		})
		out, err := stream.Collect(ctx, seq)
		if err != nil {
			return stream.Seq[chunk.Chunk]{}, h.Warnings, newError(IoFailed, err)
		}
		var buf bytes.Buffer
		for _, c := range out {
			buf.Write(c.Data)
		}
		downgraded, err := revision.Transform(buf.Bytes(), string(Rev20), string(Rev12), revision.Flags{
			IncludeAssociationEvent:      spec.NormalizeToLegacyIDs,
			IncludePersistentDisposition: spec.NormalizeToLegacyIDs,
			IncludeSensorElementList:     spec.NormalizeToLegacyIDs,
		})
		if err != nil {
			return stream.Seq[chunk.Chunk]{}, h.Warnings, newError(TransformFailed, err)
		}
		return stream.New(func(context.Context) (chunk.Chunk, error, bool) {
			if len(downgraded) == 0 {
				return chunk.Chunk{}, nil, false
			}
			data := downgraded
			downgraded = nil
			return chunk.Chunk{Data: data}, nil, true
		}), h.Warnings, nil
	default:
		return stream.Seq[chunk.Chunk]{}, nil, unsupportedError(spec)
	}
}

func (r *Router) routeObjectToObject(ctx context.Context, src *source.Source, spec ConversionSpec) (stream.Seq[chunk.Chunk], func() []objectstream.Warning, error) {
	if (spec.FromRev != "" && spec.FromRev != Rev20) || spec.ToRev != Rev20 {
		return stream.Seq[chunk.Chunk]{}, nil, unsupportedError(spec)
	}
	return src.AsByteSequence(ctx), nil, nil
}

// detectTagRevision sniffs the root element's schemaVersion attribute
// without a full parse, for callers that leave FromRev empty. Absent a
// recognizable value, it assumes 2.0.
func detectTagRevision(input []byte) Revision {
	idx := bytes.Index(input, []byte("schemaVersion="))
	if idx < 0 {
		return Rev20
	}
	rest := input[idx+len("schemaVersion="):]
	if len(rest) < 2 {
		return Rev20
	}
	quote := rest[0]
	end := bytes.IndexByte(rest[1:], quote)
	if end < 0 {
		return Rev20
	}
	switch strings.TrimSpace(string(rest[1 : 1+end])) {
	case "1.1":
		return Rev11
	case "1.2":
		return Rev12
	case "2.0":
		return Rev20
	default:
		return Rev20
	}
}

// headerContextBindings flattens a header node's @context value
// (string, array, or nested object) into prefix->uri pairs, mirroring
// how the object->tag converter recovers custom namespace bindings.
func headerContextBindings(v any) map[string]string {
	out := map[string]string{}
	switch t := v.(type) {
	case []any:
		for _, item := range t {
			for k, u := range headerContextBindings(item) {
				out[k] = u
			}
		}
	case *objectstream.Node:
		for _, k := range t.Keys() {
			if val, ok := t.Get(k); ok {
				if s, ok := val.(string); ok {
					out[k] = s
				}
			}
		}
	}
	return out
}

// skipToEventList discards header tokens (at any nesting depth) until
// the EventList start element has been consumed, for callers that only
// need the events and not the header field values.
func skipToEventList(r *tagstream.Reader) error {
	for {
		tok, err, ok := r.Next()
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("router: unexpected end of input scanning the document header")
		}
		if tok.Kind == tagstream.StartElementToken && tok.Start.Name.Local == "EventList" {
			return nil
		}
	}
}

func tagEvents(ctx context.Context, input []byte, normalizer epcisevent.Normalizer) (stream.Seq[*epcisevent.Event], error) {
	ns := nsctx.New()
	src := source.FromBytesNoRetry(input)
	r := tagstream.NewReader(ctx, src.AsByteSequence(ctx), ns)

	rootTok, err, ok := r.Next()
	if err != nil {
		return stream.Seq[*epcisevent.Event]{}, newError(MalformedInput, err)
	}
	if !ok || rootTok.Kind != tagstream.StartElementToken {
		return stream.Seq[*epcisevent.Event]{}, newError(MalformedInput, fmt.Errorf("router: input does not begin with a root element"))
	}
	if err := skipToEventList(r); err != nil {
		return stream.Seq[*epcisevent.Event]{}, newError(MalformedInput, err)
	}
	headerNS := nsctx.ScopeForEvent(ns)

	seq := 0
	return stream.New(func(ctx context.Context) (*epcisevent.Event, error, bool) {
		for {
			tok, err, ok := r.Next()
			if err != nil {
				return nil, newError(MalformedInput, err), false
			}
			if !ok {
				return nil, newError(MalformedInput, fmt.Errorf("router: unexpected end of input inside the event list")), false
			}
			if tok.Kind == tagstream.EndElementToken {
				return nil, nil, false
			}
			if tok.Kind != tagstream.StartElementToken {
				continue
			}

			seq++
			ev, err := epcisevent.ParseTag(r, tok)
			if err != nil {
				return nil, newErrorAt(UnmarshalFailed, seq, err), false
			}
			eventCtx := nsctx.ScopeForEvent(headerNS)
			if normalizer != nil {
				ev, err = normalizer(ev, seq, eventCtx)
				if err != nil {
					return nil, newErrorAt(UnmarshalFailed, seq, err), false
				}
			}
			return ev, nil, true
		}
	}), nil
}

func objectEvents(ctx context.Context, src *source.Source, normalizer epcisevent.Normalizer) (stream.Seq[*epcisevent.Event], error) {
	reader := objectstream.NewReader(src)
	nodes := reader.Nodes(ctx)

	docNS := nsctx.New()
	headerSeen := false
	seq := 0

	return stream.New(func(ctx context.Context) (*epcisevent.Event, error, bool) {
		for {
			node, err, ok := nodes.Next(ctx)
			if err != nil {
				return nil, newError(MalformedInput, err), false
			}
			if !ok {
				return nil, nil, false
			}
			if !headerSeen {
				headerSeen = true
				if !node.IsHeader() {
					return nil, newError(MalformedInput, fmt.Errorf("router: first node is not a recognized document header")), false
				}
				if raw, ok := node.Get("@context"); ok {
					for prefix, uri := range headerContextBindings(raw) {
						docNS.PutDocument(prefix, uri)
					}
				}
				continue
			}

			seq++
			ev, err := epcisevent.ParseObject(node)
			if err != nil {
				return nil, newErrorAt(UnmarshalFailed, seq, err), false
			}
			eventCtx := nsctx.ScopeForEvent(docNS)
			if normalizer != nil {
				ev, err = normalizer(ev, seq, eventCtx)
				if err != nil {
					return nil, newErrorAt(UnmarshalFailed, seq, err), false
				}
			}
			return ev, nil, true
		}
	}), nil
}
