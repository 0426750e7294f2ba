package budget

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/pkoukk/tiktoken-go"
	tiktoken_loader "github.com/pkoukk/tiktoken-go-loader"
	"go.uber.org/zap"
)

// EncodingName is the tokenizer used for estimates
const EncodingName = "cl100k_base"

// Counter counts tokens in a text
type Counter interface {
	Count(text string) int
	Name() string
}

// approxCounter is ceil(len/4)
type approxCounter struct{}

func (approxCounter) Count(text string) int {
	return (len(text) + 3) / 4
}

func (approxCounter) Name() string { return "approx-chars/4" }

type tiktokenCounter struct {
	enc *tiktoken.Tiktoken
}

func (c tiktokenCounter) Count(text string) int {
	return len(c.enc.Encode(text, nil, nil))
}

func (c tiktokenCounter) Name() string { return EncodingName }

var (
	loaderOnce sync.Once
	sharedEnc  *tiktoken.Tiktoken
	encErr     error
)

// loadEncoding initializes the offline BPE loader once per process.
func loadEncoding() (*tiktoken.Tiktoken, error) {
	loaderOnce.Do(func() {
		tiktoken.SetBpeLoader(tiktoken_loader.NewOfflineLoader())
		sharedEnc, encErr = tiktoken.GetEncoding(EncodingName)
	})
	return sharedEnc, encErr
}

// Estimator maps payloads to token counts
type Estimator struct {
	counter  Counter
	fallback Counter
	logger   *zap.Logger
}

// NewEstimator creates an estimator backed by the cl100k_base tokenizer. If
// the tokenizer cannot be loaded it falls back to the character ratio.
func NewEstimator(logger *zap.Logger) *Estimator {
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Estimator{fallback: approxCounter{}, logger: logger}

	enc, err := loadEncoding()
	if err != nil {
		logger.Warn("Tokenizer unavailable, using character estimate",
			zap.String("encoding", EncodingName),
			zap.Error(err),
		)
		e.counter = e.fallback
		return e
	}
	e.counter = tiktokenCounter{enc: enc}
	return e
}

// NewApproxEstimator returns an estimator that only uses the character ratio.
func NewApproxEstimator() *Estimator {
	return &Estimator{counter: approxCounter{}, fallback: approxCounter{}, logger: zap.NewNop()}
}

// NewEstimatorWithCounter wraps a custom counter; the character ratio remains
// the fallback.
func NewEstimatorWithCounter(c Counter, logger *zap.Logger) *Estimator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Estimator{counter: c, fallback: approxCounter{}, logger: logger}
}

// Name reports the active counter
func (e *Estimator) Name() string { return e.counter.Name() }

// Estimate returns the token count of payload. Strings and byte slices are
// counted as-is; anything else is JSON-serialized first.
func (e *Estimator) Estimate(payload any) int {
	return e.Count(Serialize(payload))
}

// Count returns the token count of text, falling back to the character ratio
// when the tokenizer panics.
func (e *Estimator) Count(text string) (n int) {
	if text == "" {
		return 0
	}
	defer func() {
		if r := recover(); r != nil {
			e.logger.Warn("Tokenizer failed, using character estimate", zap.Any("panic", r))
			n = e.fallback.Count(text)
		}
	}()
	return e.counter.Count(text)
}

// Serialize renders payload the way it is measured and returned in raw mode.
func Serialize(payload any) string {
	switch v := payload.(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return string(v)
	case json.RawMessage:
		return string(v)
	}
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return fmt.Sprint(payload)
	}
	return string(data)
}
