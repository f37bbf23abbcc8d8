package types

// ---- Logger configuration (read from /.config/picologger.json) ----

type Config struct {
	Version     string `json:"version"`
	ID          int    `json:"id"`
	Name        string `json:"name,omitempty"`
	Location    string `json:"location,omitempty"`
	Description string `json:"description,omitempty"`

	Log LogConfig    `json:"log"`
	HW  HWConfig     `json:"hw"`
	TIM TimingConfig `json:"tim"`
	SEN SensorConfig `json:"sen"`
	SYS SystemConfig `json:"sys"`
}

type LogConfig struct {
	Path  string `json:"path"`  // durable log on the data volume
	Level string `json:"level"` // DEBUG | INFO | WARNING | ERROR | CRITICAL
}

// ---- Hardware wiring (GPIO numbers, GP0..GP28 on RP2040) ----

type HWConfig struct {
	Version string       `json:"version"`
	SDC     SPIConfig    `json:"sdc"`
	RTC     I2CConfig    `json:"rtc"`
	EADC    *I2CConfig   `json:"eadc,omitempty"` // optional external ADC (ADS1115)
	UART    *UARTConfig  `json:"uart,omitempty"` // optional diagnostic mirror
	Switch  SwitchConfig `json:"switch"`
	LED     LEDConfig    `json:"sled"`
}

type SPIConfig struct {
	ID   int `json:"id"`
	CS   int `json:"cs"`
	MOSI int `json:"mosi"`
	MISO int `json:"miso"`
	SCK  int `json:"sck"`
}

type I2CConfig struct {
	ID   int    `json:"id"`
	SDA  int    `json:"sda"`
	SCL  int    `json:"scl"`
	Hz   uint32 `json:"hz,omitempty"`
	Addr uint16 `json:"addr,omitempty"`
}

type UARTConfig struct {
	ID   int    `json:"id"`
	Baud uint32 `json:"baudrate"`
	TX   int    `json:"tx"`
	RX   int    `json:"rx"`
}

type SwitchConfig struct {
	PWR int `json:"pwr"` // peripheral power rail enable
	FN  int `json:"fn"`  // "logging enabled" input
}

type LEDConfig struct {
	R         int  `json:"r"`
	G         int  `json:"g"`
	B         int  `json:"b"`
	ActiveLow bool `json:"active_low,omitempty"`
}

// ---- Timing ----

type TimingConfig struct {
	Interval  Duration `json:"interval"`
	Tolerance Duration `json:"delta_interval"`
	WakeHaste Duration `json:"wake_haste"`

	SMS   SampleConfig `json:"sms"`
	OW    SampleConfig `json:"ow"`
	BAT   SampleConfig `json:"bat"`
	ITEMP SampleConfig `json:"itemp"`
}

// SampleConfig sets how many batches a source takes per cycle and the pause
// between them.
type SampleConfig struct {
	Count int      `json:"n_reads"`
	Delay Duration `json:"read_delay"`
}

// ---- Sensors ----

// ADCLocation names where an analog channel is converted.
type ADCLocation string

const (
	ADCInternal ADCLocation = "INT"     // RP2040 ADC (or VSYS for the battery)
	ADCPin      ADCLocation = "iADC"    // RP2040 ADC on an explicit channel
	ADCExternal ADCLocation = "ADS1115" // external front-end
	ADCExtAlias ADCLocation = "eADC"
)

type SensorConfig struct {
	SMS SMSConfig `json:"sms"`
	OW  OWConfig  `json:"ow"`
}

type SMSConfig struct {
	Loc      ADCLocation     `json:"loc"`
	Channels []ChannelConfig `json:"channels"`
}

type ChannelConfig struct {
	Name string `json:"name"`
	Ch   int    `json:"ch"`
}

type OWConfig struct {
	Pin        int      `json:"pin"`
	Conversion Duration `json:"conversion,omitempty"`
}

type SystemConfig struct {
	BAT BatteryConfig `json:"bat"`
}

type BatteryConfig struct {
	Loc  ADCLocation `json:"loc"`
	Ch   int         `json:"ch"`
	R1   float64     `json:"r1"`
	R2   float64     `json:"r2"`
	VMin float64     `json:"vmin,omitempty"`
	VMax float64     `json:"vmax,omitempty"`
}
