package afsk

/*------------------------------------------------------------------
 *
 * Purpose:   	Print statistics for audio input stream.
 *
 *		A common complaint is that there is no indication of
 *		audio input level until a message is received correctly.
 *		With a report interval set, something like this is
 *		printed periodically:
 *
 *		Sample rate approx. 48.0 k, 0 errors, receive audio level 31 peak 44
 *
 *		The level is the RMS of the samples as a percentage of
 *		full scale.  Somewhere around 30 to 50 is comfortable.
 *		An adapter producing all zeros shows up right away.
 *
 *---------------------------------------------------------------*/

import (
	"math"
	"time"

	"github.com/charmbracelet/log"
	"gonum.org/v1/gonum/floats"
)

// AudioLevel is a summary of one block of samples, as percent of full scale.
type AudioLevel struct {
	RMS  float64
	Peak float64
}

// MeasureLevel computes the level of a block of samples.
func MeasureLevel(samples []float32) AudioLevel {
	if len(samples) == 0 {
		return AudioLevel{}
	}

	var s = make([]float64, len(samples))
	for i, v := range samples {
		s[i] = math.Abs(float64(v))
	}

	var rms = floats.Norm(s, 2) / math.Sqrt(float64(len(s)))

	return AudioLevel{
		RMS:  100 * rms,
		Peak: 100 * floats.Max(s),
	}
}

type AudioStats struct {
	interval time.Duration
	logger   *log.Logger
	now      func() time.Time

	lastTime      time.Time
	sampleCount   int
	errorCount    int
	suppressFirst bool
	level         AudioLevel
}

// NewAudioStats reports every interval seconds.  0 turns it off.
func NewAudioStats(interval int, logger *log.Logger) *AudioStats {
	return &AudioStats{
		interval: time.Duration(interval) * time.Second,
		logger:   logger.WithPrefix("audio"),
		now:      time.Now,
	}
}

/*------------------------------------------------------------------
 *
 * Name:        Add
 *
 * Purpose:     Add sample count from one buffer to the statistics.
 *		Print if specified amount of time has passed.
 *
 * Inputs:	samples	- What was read.
 *
 *		err	- Read error.  Counts as an error unless nil.
 *
 * Returns:	true if a report was printed.
 *
 *----------------------------------------------------------------*/

func (a *AudioStats) Add(samples []float32, err error) bool {
	if a.interval <= 0 {
		return false
	}

	if a.lastTime.IsZero() {
		// Suppressing the first one could mean a rather long wait for
		// the first message.  We make the first collection interval 3 seconds.
		a.lastTime = a.now().Add(-(a.interval - 3*time.Second))
		a.suppressFirst = true

		return false
	}

	if err != nil || len(samples) == 0 {
		a.errorCount++
	}

	a.sampleCount += len(samples)
	if len(samples) > 0 {
		a.level = MeasureLevel(samples)
	}

	var thisTime = a.now()
	if thisTime.Before(a.lastTime.Add(a.interval)) {
		return false
	}

	var printed = false

	if a.suppressFirst {
		// The first rate would be off because we didn't start on a
		// second boundary.
		a.suppressFirst = false
	} else {
		var aveRate = float64(a.sampleCount) / 1000.0 / a.interval.Seconds()

		a.logger.Infof("Sample rate approx. %.1f k, %d errors, receive audio level %.0f peak %.0f",
			aveRate, a.errorCount, a.level.RMS, a.level.Peak)

		printed = true
	}

	a.lastTime = thisTime
	a.sampleCount = 0
	a.errorCount = 0

	return printed
}
