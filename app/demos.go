package app

import (
	"time"

	"libtock/drivers"
	"libtock/drivers/adc"
	"libtock/drivers/ble"
	"libtock/drivers/buttons"
	"libtock/drivers/console"
	"libtock/drivers/led"
	"libtock/drivers/sensors"
	"libtock/drivers/timer"
	"libtock/executor"
	"libtock/futures"
	"libtock/syscalls"
)

// Demo names accepted by Config.Demo.
const (
	DemoButtonLEDs = "buttonleds"
	DemoBlink      = "blink"
	DemoADC        = "adc"
	DemoTimer      = "timer"
	DemoSensors    = "sensors"
	DemoBLE        = "ble"
)

// LEDService is the 16-bit service UUID the BLE demo listens on. Service data
// is [led, on].
var LEDService = [2]byte{91, 79}

var demos = map[string]func(*executor.Executor, *drivers.Drivers) error{
	DemoButtonLEDs: spawnButtonLEDs,
	DemoBlink:      spawnBlink,
	DemoADC:        spawnADC,
	DemoTimer:      spawnTimer,
	DemoSensors:    spawnSensors,
	DemoBLE:        spawnBLE,
}

// Demos returns the demo names in a stable order.
func Demos() []string {
	return []string{DemoButtonLEDs, DemoBlink, DemoADC, DemoTimer, DemoSensors, DemoBLE}
}

// buttonLEDs toggles LED n whenever button n is pressed.
type buttonLEDs struct {
	leds *led.Driver
	next futures.Future[buttons.Event]
}

func spawnButtonLEDs(ex *executor.Executor, d *drivers.Drivers) error {
	btns, err := d.Buttons.Init()
	if err != nil {
		return err
	}
	leds, err := d.LEDs.Init()
	if err != nil {
		return err
	}
	for _, b := range btns.All() {
		if err := b.EnableInterrupt(); err != nil {
			return err
		}
	}
	_, err = ex.Spawn(DemoButtonLEDs, &buttonLEDs{leds: leds, next: btns.WaitForEvent()})
	return err
}

func (t *buttonLEDs) Poll() (error, bool) {
	for {
		ev, ok := t.next.Poll()
		if !ok {
			return nil, false
		}
		if ev.State != buttons.Pressed {
			continue
		}
		if l, ok := t.leds.Get(ev.Button); ok {
			if err := l.Toggle(); err != nil {
				return err, true
			}
		}
	}
}

// blink shows a binary counter on the LEDs, one step every 250 ms.
type blink struct {
	leds  *led.Driver
	timer *timer.Driver
	count uint
	sleep futures.Future[error]
}

func spawnBlink(ex *executor.Executor, d *drivers.Drivers) error {
	leds, err := d.LEDs.Init()
	if err != nil {
		return err
	}
	tm, err := d.Timer.Init()
	if err != nil {
		return err
	}
	_, err = ex.Spawn(DemoBlink, &blink{leds: leds, timer: tm})
	return err
}

func (t *blink) Poll() (error, bool) {
	for {
		if t.sleep == nil {
			for i, l := range t.leds.All() {
				if err := l.Set(t.count&(1<<uint(i)) != 0); err != nil {
					return err, true
				}
			}
			t.sleep = t.timer.Sleep(250 * time.Millisecond)
		}
		err, ok := t.sleep.Poll()
		if !ok {
			return nil, false
		}
		if err != nil {
			return err, true
		}
		t.sleep = nil
		t.count++
	}
}

// adcPrint samples channel 0 once per second and prints the value.
type adcPrint struct {
	adc     *adc.ADC
	out     *console.Console
	timer   *timer.Driver
	samples *futures.EventRecord[uint]
	wait    futures.Future[uint]
	print   futures.Future[error]
	sleep   futures.Future[error]
}

func spawnADC(ex *executor.Executor, d *drivers.Drivers) error {
	rec := &futures.EventRecord[uint]{}
	a, err := d.ADC.WithCallback(func(_, value uint) { rec.Record(value) }).Init()
	if err != nil {
		return err
	}
	tm, err := d.Timer.Init()
	if err != nil {
		return err
	}
	_, err = ex.Spawn(DemoADC, &adcPrint{adc: a, out: d.Console.Create(), timer: tm, samples: rec})
	return err
}

func (t *adcPrint) Poll() (error, bool) {
	for {
		switch {
		case t.sleep != nil:
			err, ok := t.sleep.Poll()
			if !ok {
				return nil, false
			}
			if err != nil {
				return err, true
			}
			t.sleep = nil
		case t.print != nil:
			err, ok := t.print.Poll()
			if !ok {
				return nil, false
			}
			if err != nil {
				return err, true
			}
			t.print = nil
			t.sleep = t.timer.Sleep(time.Second)
		case t.wait != nil:
			v, ok := t.wait.Poll()
			if !ok {
				return nil, false
			}
			t.wait = nil
			t.print = t.out.Printf("Sample: %d\n", v)
		default:
			t.wait = t.samples.WaitForAny()
			if err := t.adc.Sample(0); err != nil {
				return err, true
			}
		}
	}
}

// alarmPrint arms a one-second alarm, prints when it fires, and re-arms.
type alarmPrint struct {
	timer *timer.Timer
	out   *console.Console
	fired *futures.EventRecord[uint]
	wait  futures.Future[uint]
	print futures.Future[error]
}

func spawnTimer(ex *executor.Executor, d *drivers.Drivers) error {
	rec := &futures.EventRecord[uint]{}
	tm, err := d.Timer.WithCallback(func(clock uint) { rec.Record(clock) }).Init()
	if err != nil {
		return err
	}
	_, err = ex.Spawn(DemoTimer, &alarmPrint{timer: tm, out: d.Console.Create(), fired: rec})
	return err
}

func (t *alarmPrint) Poll() (error, bool) {
	for {
		if t.print != nil {
			err, ok := t.print.Poll()
			if !ok {
				return nil, false
			}
			if err != nil {
				return err, true
			}
			t.print = nil
		}
		if t.wait == nil {
			t.wait = t.fired.WaitForAny()
			if _, err := t.timer.SetAlarm(time.Second); err != nil {
				return err, true
			}
		}
		clock, ok := t.wait.Poll()
		if !ok {
			return nil, false
		}
		t.wait = nil
		t.print = t.out.Printf("Alarm fired at clock %d (%d Hz)\n", clock, t.timer.Frequency())
	}
}

// sensorPrint reads every present sensor every two seconds.
type sensorPrint struct {
	sensors []*sensors.Sensor
	out     *console.Console
	timer   *timer.Driver
	idx     int
	reading futures.Future[sensors.Reading]
	print   futures.Future[error]
	sleep   futures.Future[error]
}

func spawnSensors(ex *executor.Executor, d *drivers.Drivers) error {
	tm, err := d.Timer.Init()
	if err != nil {
		return err
	}
	var present []*sensors.Sensor
	for _, s := range []*sensors.Sensor{d.Temperature, d.Humidity, d.AmbientLight} {
		if s.Present() {
			present = append(present, s)
		}
	}
	_, err = ex.Spawn(DemoSensors, &sensorPrint{sensors: present, out: d.Console.Create(), timer: tm})
	return err
}

func (t *sensorPrint) Poll() (error, bool) {
	if len(t.sensors) == 0 {
		if t.print == nil {
			t.print = t.out.Printf("No sensors present\n")
		}
		return t.print.Poll()
	}
	for {
		switch {
		case t.sleep != nil:
			err, ok := t.sleep.Poll()
			if !ok {
				return nil, false
			}
			if err != nil {
				return err, true
			}
			t.sleep = nil
		case t.reading != nil:
			r, ok := t.reading.Poll()
			if !ok {
				return nil, false
			}
			t.reading = nil
			t.print = t.out.Printf("%s: %s\n", r.Kind, r)
		case t.print != nil:
			err, ok := t.print.Poll()
			if !ok {
				return nil, false
			}
			if err != nil {
				return err, true
			}
			t.print = nil
			t.idx++
			if t.idx == len(t.sensors) {
				t.idx = 0
				t.sleep = t.timer.Sleep(2 * time.Second)
			}
		default:
			f, err := t.sensors[t.idx].Read()
			if err != nil {
				return err, true
			}
			t.reading = f
		}
	}
}

// bleLEDs advertises the board and switches LEDs on service data addressed to
// LEDService.
type bleLEDs struct {
	leds *led.Driver
	scan *ble.Buffer
	mem  syscalls.SharedMemory
	seen *futures.EventRecord[uint]
	next futures.Future[uint]
}

func spawnBLE(ex *executor.Executor, d *drivers.Drivers) error {
	leds, err := d.LEDs.Init()
	if err != nil {
		return err
	}

	var payload ble.Payload
	if err := payload.AddFlag(ble.FlagLEGeneralDiscoverable | ble.FlagBREDRNotSupported); err != nil {
		return err
	}
	if err := payload.Add(ble.TypeCompleteName, []byte("libtock")); err != nil {
		return err
	}
	if _, err := d.BLEAdvertising.Initialize(300*time.Millisecond, &payload, &ble.Buffer{}); err != nil {
		return err
	}

	t := &bleLEDs{leds: leds, scan: &ble.Buffer{}, seen: &futures.EventRecord[uint]{}}
	mem, err := d.BLEScanning.ShareMemory(t.scan)
	if err != nil {
		return err
	}
	t.mem = mem
	if _, err := d.BLEScanning.Start(func(n uint) { t.seen.Record(n) }); err != nil {
		return err
	}
	t.next = t.seen.WaitForAny()
	_, err = ex.Spawn(DemoBLE, t)
	return err
}

func (t *bleLEDs) Poll() (error, bool) {
	for {
		if _, ok := t.next.Poll(); !ok {
			return nil, false
		}
		var pkt ble.Buffer
		t.mem.ReadBytes(pkt[:])
		data, ok := ble.FindInScan(pkt[:], ble.TypeServiceData)
		if !ok {
			continue
		}
		cmd, ok := ble.ExtractForService(LEDService, data)
		if !ok || len(cmd) < 2 {
			continue
		}
		if l, ok := t.leds.Get(int(cmd[0])); ok {
			if err := l.Set(cmd[1] != 0); err != nil {
				return err, true
			}
		}
	}
}
