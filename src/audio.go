package afsk

/*------------------------------------------------------------------
 *
 * Purpose:   	Interface to audio device commonly called a "sound card" for
 *		historical reasons.
 *
 * Description:	PortAudio takes care of the operating system differences
 *		(ALSA, PulseAudio, CoreAudio, ...).  We always ask for one
 *		channel of float32 at our sample rate and let PortAudio do
 *		any conversion.
 *
 *		A device can be named by its index, as printed by
 *		afsk-devices, or by the start of its name.  Empty means
 *		the system default.
 *
 *---------------------------------------------------------------*/

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/gordonklaus/portaudio"
)

// DeviceInfo describes one audio device.
type DeviceInfo struct {
	Index             int
	Name              string
	HostAPI           string
	MaxInputChannels  int
	MaxOutputChannels int
	DefaultSampleRate float64
}

// ListDevices returns all the devices PortAudio knows about.
func ListDevices() ([]DeviceInfo, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrAudioDevice, err)
	}
	defer portaudio.Terminate() //nolint:errcheck

	var devices, err = portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrAudioDevice, err)
	}

	var list = make([]DeviceInfo, 0, len(devices))

	for i, d := range devices {
		var hostAPI string
		if d.HostApi != nil {
			hostAPI = d.HostApi.Name
		}

		list = append(list, DeviceInfo{
			Index:             i,
			Name:              d.Name,
			HostAPI:           hostAPI,
			MaxInputChannels:  d.MaxInputChannels,
			MaxOutputChannels: d.MaxOutputChannels,
			DefaultSampleRate: d.DefaultSampleRate,
		})
	}

	return list, nil
}

// findDevice must be called between Initialize and Terminate.
func findDevice(name string, input bool) (*portaudio.DeviceInfo, error) {
	if name == "" {
		if input {
			return portaudio.DefaultInputDevice()
		}

		return portaudio.DefaultOutputDevice()
	}

	var devices, err = portaudio.Devices()
	if err != nil {
		return nil, err
	}

	if i, atoiErr := strconv.Atoi(name); atoiErr == nil {
		if i < 0 || i >= len(devices) {
			return nil, fmt.Errorf("device index %d out of range, %d devices", i, len(devices))
		}

		return devices[i], nil
	}

	for _, d := range devices {
		if !strings.HasPrefix(d.Name, name) {
			continue
		}

		if (input && d.MaxInputChannels > 0) || (!input && d.MaxOutputChannels > 0) {
			return d, nil
		}
	}

	return nil, fmt.Errorf("device not found: %s", name)
}

// PortAudioInput is a sound card capture stream.  It is an AudioSource.
type PortAudioInput struct {
	stream *portaudio.Stream
	buf    []float32
	rate   int
	name   string
}

/*------------------------------------------------------------------
 *
 * Name:        OpenPortAudioInput
 *
 * Purpose:     Open and start a mono capture stream.
 *
 * Inputs:	device		- Index, name prefix, or empty for default.
 *
 *		sampleRate	- Samples per second.
 *
 *		framesPerBuffer	- Samples returned by each Read.
 *
 *----------------------------------------------------------------*/

func OpenPortAudioInput(device string, sampleRate int, framesPerBuffer int) (*PortAudioInput, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrAudioDevice, err)
	}

	var info, findErr = findDevice(device, true)
	if findErr != nil {
		portaudio.Terminate() //nolint:errcheck
		return nil, fmt.Errorf("%w: %w", ErrAudioDevice, findErr)
	}

	var p = portaudio.HighLatencyParameters(info, nil)
	p.Input.Channels = 1
	p.Output.Channels = 0
	p.SampleRate = float64(sampleRate)
	p.FramesPerBuffer = framesPerBuffer

	var buf = make([]float32, framesPerBuffer)

	var stream, openErr = portaudio.OpenStream(p, buf)
	if openErr != nil {
		portaudio.Terminate() //nolint:errcheck
		return nil, fmt.Errorf("%w: open input %q: %w", ErrAudioDevice, info.Name, openErr)
	}

	if err := stream.Start(); err != nil {
		stream.Close()        //nolint:errcheck
		portaudio.Terminate() //nolint:errcheck
		return nil, fmt.Errorf("%w: start input %q: %w", ErrAudioDevice, info.Name, err)
	}

	return &PortAudioInput{
		stream: stream,
		buf:    buf,
		rate:   sampleRate,
		name:   info.Name,
	}, nil
}

func (a *PortAudioInput) Name() string    { return a.name }
func (a *PortAudioInput) SampleRate() int { return a.rate }
func (a *PortAudioInput) Paced() bool     { return true }

func (a *PortAudioInput) Read() ([]float32, error) {
	var err = a.stream.Read()
	if errors.Is(err, portaudio.InputOverflowed) {
		// The samples we did get are still good.
		return a.buf, ErrInputOverflow
	}

	if err != nil {
		return nil, err
	}

	return a.buf, nil
}

func (a *PortAudioInput) Close() error {
	var err = a.stream.Stop()
	if closeErr := a.stream.Close(); closeErr != nil && err == nil {
		err = closeErr
	}

	portaudio.Terminate() //nolint:errcheck

	return err
}

// PortAudioOutput plays samples to a sound card.  It is an AudioOutput.
type PortAudioOutput struct {
	stream *portaudio.Stream
	buf    []float32
	rate   int
}

func OpenPortAudioOutput(device string, sampleRate int, framesPerBuffer int) (*PortAudioOutput, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrAudioDevice, err)
	}

	var info, findErr = findDevice(device, false)
	if findErr != nil {
		portaudio.Terminate() //nolint:errcheck
		return nil, fmt.Errorf("%w: %w", ErrAudioDevice, findErr)
	}

	var p = portaudio.HighLatencyParameters(nil, info)
	p.Input.Channels = 0
	p.Output.Channels = 1
	p.SampleRate = float64(sampleRate)
	p.FramesPerBuffer = framesPerBuffer

	var buf = make([]float32, framesPerBuffer)

	var stream, openErr = portaudio.OpenStream(p, buf)
	if openErr != nil {
		portaudio.Terminate() //nolint:errcheck
		return nil, fmt.Errorf("%w: open output %q: %w", ErrAudioDevice, info.Name, openErr)
	}

	if err := stream.Start(); err != nil {
		stream.Close()        //nolint:errcheck
		portaudio.Terminate() //nolint:errcheck
		return nil, fmt.Errorf("%w: start output %q: %w", ErrAudioDevice, info.Name, err)
	}

	return &PortAudioOutput{stream: stream, buf: buf, rate: sampleRate}, nil
}

func (a *PortAudioOutput) SampleRate() int { return a.rate }

// Write plays all the samples, padding the last buffer with silence.
func (a *PortAudioOutput) Write(samples []float32) error {
	for len(samples) > 0 {
		var n = copy(a.buf, samples)
		clear(a.buf[n:])
		samples = samples[n:]

		if err := a.stream.Write(); err != nil && !errors.Is(err, portaudio.OutputUnderflowed) {
			return err
		}
	}

	return nil
}

func (a *PortAudioOutput) Close() error {
	var err = a.stream.Stop()
	if closeErr := a.stream.Close(); closeErr != nil && err == nil {
		err = closeErr
	}

	portaudio.Terminate() //nolint:errcheck

	return err
}
