// Package sim provides the interactive prompt of the headless simulator. The
// commands drive the simulated hardware of a running board.
package sim

import (
	"fmt"
	"strconv"
	"strings"

	"libtock/app"
	"libtock/drivers/ble"
	"libtock/kernel"

	"github.com/abiosoft/ishell"
)

const (
	kernelKey = "kernel"
	prompt    = "board> "
)

var commands = []*ishell.Cmd{
	&PressCmd,
	&ReleaseCmd,
	&ADCCmd,
	&SensorCmd,
	&BLECmd,
	&LEDsCmd,
	&StatusCmd,
}

// NewShell returns a prompt bound to k.
func NewShell(k *kernel.Kernel) *ishell.Shell {
	sh := ishell.New()
	sh.Set(kernelKey, k)
	sh.SetPrompt(prompt)
	for _, cmd := range commands {
		sh.AddCmd(cmd)
	}
	return sh
}

func kernelFrom(c *ishell.Context) *kernel.Kernel {
	return c.Get(kernelKey).(*kernel.Kernel)
}

func uintArgs(c *ishell.Context, n int, usage string) ([]uint, bool) {
	if len(c.Args) != n {
		c.Err(fmt.Errorf("usage: %s", usage))
		return nil, false
	}
	out := make([]uint, n)
	for i, a := range c.Args {
		v, err := strconv.ParseUint(a, 0, 32)
		if err != nil {
			c.Err(fmt.Errorf("invalid number %q", a))
			return nil, false
		}
		out[i] = uint(v)
	}
	return out, true
}

func setButton(c *ishell.Context, pressed bool, usage string) {
	args, ok := uintArgs(c, 1, usage)
	if !ok {
		return
	}
	if !kernelFrom(c).PressButton(int(args[0]), pressed) {
		c.Err(fmt.Errorf("no button %d", args[0]))
	}
}

var sensorDrivers = map[string]uint{
	"temperature": kernel.DriverTemperature,
	"humidity":    kernel.DriverHumidity,
	"light":       kernel.DriverAmbientLight,
}

var (
	// PressCmd presses a button.
	PressCmd = ishell.Cmd{
		Name:    "press",
		Aliases: []string{"p"},
		Help:    "press <button>",
		Func: func(c *ishell.Context) {
			setButton(c, true, "press <button>")
		},
	}

	// ReleaseCmd releases a button.
	ReleaseCmd = ishell.Cmd{
		Name:    "release",
		Aliases: []string{"r"},
		Help:    "release <button>",
		Func: func(c *ishell.Context) {
			setButton(c, false, "release <button>")
		},
	}

	// ADCCmd sets the value of an ADC channel.
	ADCCmd = ishell.Cmd{
		Name: "adc",
		Help: "adc <channel> <value>, value is 12-bit",
		Func: func(c *ishell.Context) {
			args, ok := uintArgs(c, 2, "adc <channel> <value>")
			if !ok {
				return
			}
			if !kernelFrom(c).SetADC(int(args[0]), args[1]) {
				c.Err(fmt.Errorf("no adc channel %d", args[0]))
			}
		},
	}

	// SensorCmd sets the next reading of a sensor.
	SensorCmd = ishell.Cmd{
		Name: "sensor",
		Help: "sensor <temperature|humidity|light> <value>",
		Func: func(c *ishell.Context) {
			if len(c.Args) != 2 {
				c.Err(fmt.Errorf("usage: sensor <temperature|humidity|light> <value>"))
				return
			}
			driver, ok := sensorDrivers[strings.ToLower(c.Args[0])]
			if !ok {
				c.Err(fmt.Errorf("unknown sensor %q", c.Args[0]))
				return
			}
			v, err := strconv.ParseUint(c.Args[1], 0, 32)
			if err != nil {
				c.Err(fmt.Errorf("invalid number %q", c.Args[1]))
				return
			}
			kernelFrom(c).SetSensor(driver, uint(v))
		},
	}

	// BLECmd delivers an advertisement carrying an LED command.
	BLECmd = ishell.Cmd{
		Name: "ble",
		Help: "ble <led> <0|1>, advertise an LED command to a scanning app",
		Func: func(c *ishell.Context) {
			args, ok := uintArgs(c, 2, "ble <led> <0|1>")
			if !ok {
				return
			}
			var p ble.Payload
			if err := p.AddServicePayload(app.LEDService, []byte{byte(args[0]), byte(args[1])}); err != nil {
				c.Err(err)
				return
			}
			pkt := ble.ScanPacket([6]byte{0xC0, 0xFF, 0xEE, 0, 0, 1}, p.Bytes())
			if !kernelFrom(c).InjectAdvertisement(pkt) {
				c.Err(fmt.Errorf("no app is scanning"))
			}
		},
	}

	// LEDsCmd prints the LED states.
	LEDsCmd = ishell.Cmd{
		Name: "leds",
		Help: "show LED states",
		Func: func(c *ishell.Context) {
			c.Println(formatLEDs(kernelFrom(c).LEDStates()))
		},
	}

	// StatusCmd prints kernel state.
	StatusCmd = ishell.Cmd{
		Name: "status",
		Help: "show kernel time, pending upcalls, status codes and advertising",
		Func: func(c *ishell.Context) {
			k := kernelFrom(c)
			c.Printf("time:     %d ms\n", k.Now())
			c.Printf("pending:  %d upcalls\n", k.PendingUpcalls())
			c.Printf("leds:     %s\n", formatLEDs(k.LEDStates()))
			c.Printf("status:   %v\n", k.StatusCodes())
			if payload, interval, ok := k.Advertisement(); ok {
				name, _ := ble.Find(payload, ble.TypeCompleteName)
				c.Printf("advert:   %q every %d ms\n", name, interval)
			}
		},
	}
)

func formatLEDs(states []bool) string {
	var b strings.Builder
	for i, on := range states {
		if i > 0 {
			b.WriteByte(' ')
		}
		if on {
			fmt.Fprintf(&b, "%d:on", i)
		} else {
			fmt.Fprintf(&b, "%d:off", i)
		}
	}
	return b.String()
}
