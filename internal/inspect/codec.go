package inspect

import (
	"bytes"
	"time"

	"github.com/danmuck/hxa/internal/hxa"
	"github.com/danmuck/hxa/internal/observability"
	"github.com/rs/zerolog/log"
)

// Decode runs the codec over b and records the outcome.
func Decode(b []byte, limits hxa.Limits) (*hxa.File, error) {
	start := time.Now()
	f, err := hxa.NewDecoder(limits).Decode(b)
	observability.RecordCodec("decode", len(b), time.Since(start), hxa.KindName(err), err == nil)
	if err != nil {
		log.Warn().Err(err).Str("kind", hxa.KindName(err)).Int("bytes", len(b)).Msg("decode rejected")
		return nil, err
	}
	return f, nil
}

// Encode serializes f and records the outcome.
func Encode(f *hxa.File, limits hxa.Limits) ([]byte, error) {
	start := time.Now()
	b, err := hxa.NewEncoder(limits).Encode(f)
	observability.RecordCodec("encode", len(b), time.Since(start), hxa.KindName(err), err == nil)
	if err != nil {
		log.Warn().Err(err).Str("kind", hxa.KindName(err)).Msg("encode rejected")
		return nil, err
	}
	return b, nil
}

// Inspect decodes b and summarizes it.
func Inspect(b []byte, limits hxa.Limits) (Report, error) {
	f, err := Decode(b, limits)
	if err != nil {
		return Report{}, err
	}
	r := Build(f, len(b))
	log.Debug().Int("bytes", len(b)).Int("nodes", len(r.Nodes)).Msg("inspect ok")
	return r, nil
}

// RoundTripResult is the outcome of decoding and re-encoding a file.
type RoundTripResult struct {
	Output    []byte
	Identical bool
}

// RoundTrip decodes b and encodes it again. Identical is false when the input
// used the three byte magic or carried bytes past the last node.
func RoundTrip(b []byte, limits hxa.Limits) (RoundTripResult, error) {
	f, err := Decode(b, limits)
	if err != nil {
		return RoundTripResult{}, err
	}
	out, err := Encode(f, limits)
	if err != nil {
		return RoundTripResult{}, err
	}
	res := RoundTripResult{Output: out, Identical: bytes.Equal(b, out)}
	log.Debug().Int("in", len(b)).Int("out", len(out)).Bool("identical", res.Identical).Msg("roundtrip ok")
	return res, nil
}
