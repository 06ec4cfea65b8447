package synth

import (
	"math/rand/v2"
	"strconv"
	"time"

	"github.com/brianvoe/gofakeit/v7"

	"github.com/otl-tools/otltemplate/internal/catalog"
)

// ValueSource produces representative placeholder values
type ValueSource interface {
	// Boolean returns a placeholder boolean
	Boolean() bool
	// Scalar returns a placeholder for a scalar attribute, formatted for its datatype
	Scalar(attr *catalog.AttributeDescriptor) string
	// Option returns one of the active options of an enumerated attribute
	Option(attr *catalog.AttributeDescriptor) string
	// Identifier returns a placeholder identificator
	Identifier() string
	// Intn returns a value in [0, n)
	Intn(n int) int
}

// SourceFactory creates the value source for one class of one synthesis attempt
type SourceFactory func(seed int64) ValueSource

// FakeSource is the default ValueSource. It draws from a gofakeit faker on a PCG stream,
// so equal seeds give equal values.
type FakeSource struct {
	faker *gofakeit.Faker
}

// NewFakeSource returns a FakeSource seeded with seed. Every seed, 0 included, is
// deterministic.
func NewFakeSource(seed int64) ValueSource {
	// one source per class and attempt, never shared between goroutines
	pcg := rand.NewPCG(uint64(seed), uint64(seed))
	return &FakeSource{faker: gofakeit.NewFaker(pcg, false)}
}

var (
	rangeStart = time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)
	rangeEnd   = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
)

// Boolean returns true or false
func (s *FakeSource) Boolean() bool {
	return s.faker.Bool()
}

// Scalar formats a value for the attribute datatype
func (s *FakeSource) Scalar(attr *catalog.AttributeDescriptor) string {
	switch attr.Datatype {
	case catalog.DatatypeInteger:
		return strconv.Itoa(s.faker.IntN(1000))
	case catalog.DatatypeDecimal:
		return strconv.FormatFloat(float64(s.faker.IntN(100000))/100, 'f', 2, 64)
	case catalog.DatatypeDate:
		return s.moment().Format("2006-01-02")
	case catalog.DatatypeDateTime:
		return s.moment().Format("2006-01-02 15:04:05")
	case catalog.DatatypeTime:
		return s.moment().Format("15:04:05")
	case catalog.DatatypeURI:
		return "https://example.com/" + s.faker.LetterN(8)
	case catalog.DatatypeWKT:
		x := s.faker.IntRange(100000, 249999)
		y := s.faker.IntRange(150000, 249999)
		return "POINT Z (" + strconv.Itoa(x) + " " + strconv.Itoa(y) + " 0)"
	default:
		return "dummy_" + s.faker.LetterN(8)
	}
}

func (s *FakeSource) moment() time.Time {
	return s.faker.DateRange(rangeStart, rangeEnd)
}

// Option picks an active option, or returns "" when there is none
func (s *FakeSource) Option(attr *catalog.AttributeDescriptor) string {
	options := attr.ActiveOptions()
	if len(options) == 0 {
		return ""
	}
	return options[s.faker.IntN(len(options))].Value
}

// Identifier returns a version 4 UUID drawn from the seeded stream
func (s *FakeSource) Identifier() string {
	return s.faker.UUID()
}

// Intn returns a value in [0, n)
func (s *FakeSource) Intn(n int) int {
	return s.faker.IntN(n)
}
