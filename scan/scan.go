// Package scan provides the data-parallel inner loops used by the tokenizer:
// byte classification for pretokenization and adjacent-pair matching for the
// merge loop. Every level produces bit-identical results; the level only
// changes how many bytes are processed per operation.
//
// All levels are portable Go. LevelWide is the SWAR loop unrolled four times,
// not vector instructions: the CPU feature check in Detect only chooses the
// unroll factor, on the basis that machines with 256-bit or NEON units also
// have the load bandwidth to keep four words in flight. Pair matching compares
// one pair per step at every level.
package scan

import (
	"fmt"
	"log/slog"
	"math/bits"
	"strings"

	"golang.org/x/sys/cpu"

	"github.com/gpt2tok/gpt2tok/envconfig"
)

type Level int

const (
	// LevelScalar processes one byte (or one pair) per step using lookup tables.
	LevelScalar Level = iota
	// LevelSWAR processes eight bytes per step inside a 64-bit register.
	LevelSWAR
	// LevelWide processes 32 bytes per step as four independent 64-bit lanes.
	LevelWide
)

func (l Level) String() string {
	switch l {
	case LevelScalar:
		return "scalar"
	case LevelSWAR:
		return "swar"
	case LevelWide:
		return "wide"
	default:
		return fmt.Sprintf("level(%d)", int(l))
	}
}

// Width is the number of input bytes consumed per step.
func (l Level) Width() int {
	switch l {
	case LevelSWAR:
		return 8
	case LevelWide:
		return 32
	default:
		return 1
	}
}

func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "scalar", "none", "off":
		return LevelScalar, nil
	case "swar", "64":
		return LevelSWAR, nil
	case "wide", "avx2", "neon", "256":
		return LevelWide, nil
	default:
		return LevelScalar, fmt.Errorf("unknown scan level %q", s)
	}
}

// Detect picks the unroll factor for the running hardware. AVX2 or ASIMD
// selects LevelWide; no vector instructions are emitted either way.
func Detect() Level {
	if bits.UintSize < 64 {
		return LevelScalar
	}

	if cpu.X86.HasAVX2 || cpu.ARM64.HasASIMD {
		return LevelWide
	}

	return LevelSWAR
}

var active = initLevel()

func initLevel() Level {
	level := Detect()
	if s := envconfig.Scan; s != "" {
		forced, err := ParseLevel(s)
		if err != nil {
			slog.Error("invalid setting, ignoring", "GPT2TOK_SCAN", s, "error", err)
		} else {
			level = forced
		}
	}

	return level
}

// Active is the level selected at process start.
func Active() Level {
	return active
}
