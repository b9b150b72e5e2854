package servo

import (
	"fmt"
	"math"
	"time"

	"periph.io/x/periph/conn/i2c"
	"periph.io/x/periph/conn/i2c/i2creg"
	"periph.io/x/periph/host"

	"github.com/banshee-data/eyetrack/internal/monitoring"
)

// PCA9685 registers and mode bits.
const (
	regMode1    = 0x00
	regMode2    = 0x01
	regLED0OnL  = 0x06
	regPrescale = 0xFE

	mode1Sleep   = 0x10
	mode1AutoInc = 0x20
	mode1Restart = 0x80
	mode2OutDrv  = 0x04

	pcaOscillatorHz = 25_000_000
	pcaResolution   = 4096
)

// Bus is the register transport to the PWM chip. *i2c.Dev satisfies it.
type Bus interface {
	Tx(w, r []byte) error
}

// PCA9685 is a 16-channel PWM driver addressed over I2C.
type PCA9685 struct {
	bus   Bus
	table Table
	sleep func(time.Duration)

	writeErrors uint64
	errLog      *monitoring.Throttle
}

// NewPCA9685 wraps an already opened bus. Call Init before writing positions.
func NewPCA9685(bus Bus, table Table) *PCA9685 {
	return &PCA9685{
		bus:    bus,
		table:  table,
		sleep:  time.Sleep,
		errLog: monitoring.NewThrottle(5 * time.Second),
	}
}

// OpenPCA9685 initialises the host drivers, opens the named I2C bus and
// configures the chip at addr for the given PWM frequency. The returned
// closer releases the bus.
func OpenPCA9685(busName string, addr uint16, freqHz float64, table Table) (*PCA9685, i2c.BusCloser, error) {
	if _, err := host.Init(); err != nil {
		return nil, nil, fmt.Errorf("failed to initialise host drivers: %w", err)
	}
	bus, err := i2creg.Open(busName)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open i2c bus %q: %w", busName, err)
	}
	p := NewPCA9685(&i2c.Dev{Bus: bus, Addr: addr}, table)
	if err := p.Init(freqHz); err != nil {
		bus.Close()
		return nil, nil, err
	}
	return p, bus, nil
}

// Prescale returns the prescaler value for freqHz on the internal oscillator.
func Prescale(freqHz float64) byte {
	v := math.Round(pcaOscillatorHz/(pcaResolution*freqHz)) - 1
	if v < 3 {
		v = 3
	}
	if v > 255 {
		v = 255
	}
	return byte(v)
}

func (p *PCA9685) writeReg(reg byte, data ...byte) error {
	return p.bus.Tx(append([]byte{reg}, data...), nil)
}

// Init sets the PWM frequency and enables register auto-increment.
// The prescaler can only be written while the oscillator sleeps.
func (p *PCA9685) Init(freqHz float64) error {
	steps := []struct {
		reg  byte
		val  byte
		what string
	}{
		{regMode1, mode1Sleep, "sleep"},
		{regPrescale, Prescale(freqHz), "prescale"},
		{regMode2, mode2OutDrv, "output mode"},
		{regMode1, mode1AutoInc, "wake"},
	}
	for _, s := range steps {
		if err := p.writeReg(s.reg, s.val); err != nil {
			return fmt.Errorf("pca9685 %s: %w", s.what, err)
		}
	}
	// Oscillator needs 500us to stabilise before restart.
	p.sleep(500 * time.Microsecond)
	if err := p.writeReg(regMode1, mode1AutoInc|mode1Restart); err != nil {
		return fmt.Errorf("pca9685 restart: %w", err)
	}
	return nil
}

// SetTicks writes a raw on-time to channel (on at 0, off at ticks).
func (p *PCA9685) SetTicks(channel, ticks int) error {
	if channel < 0 || channel > 15 {
		return fmt.Errorf("pca9685 channel %d out of range", channel)
	}
	if ticks < 0 {
		ticks = 0
	}
	if ticks > pcaResolution-1 {
		ticks = pcaResolution - 1
	}
	reg := byte(regLED0OnL + 4*channel)
	return p.writeReg(reg, 0, 0, byte(ticks&0xFF), byte(ticks>>8))
}

// SetChannelPosition converts the normalized position through the channel's
// travel and writes it. Failures are counted and logged, never returned.
func (p *PCA9685) SetChannelPosition(channel int, normalized float64) {
	tr, err := p.table.Lookup(channel)
	if err != nil {
		p.writeErrors++
		p.errLog.Logf("pca9685: %v", err)
		return
	}
	if err := p.SetTicks(channel, tr.Ticks(normalized)); err != nil {
		p.writeErrors++
		p.errLog.Logf("pca9685: write channel %d failed: %v (total errors: %d)", channel, err, p.writeErrors)
	}
}

// WriteErrors returns the number of failed position writes.
func (p *PCA9685) WriteErrors() uint64 {
	return p.writeErrors
}

// Release turns every wired channel fully off so the servos go limp.
func (p *PCA9685) Release() error {
	for _, ch := range p.table.Channels() {
		if err := p.SetTicks(ch, 0); err != nil {
			return err
		}
	}
	return nil
}
