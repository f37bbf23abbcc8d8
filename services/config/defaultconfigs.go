package config

// -----------------------------------------------------------------------------
// Embedded configuration
//
// Key: board name
// Val: raw JSON written to /.config/picologger.json by Setup
// -----------------------------------------------------------------------------

const cfgPico = `{
  "version": "1",
  "id": 0,
  "name": "picologger",
  "log": {"path": "/sd/picologger.log", "level": "INFO"},
  "hw": {
    "version": "pico-1",
    "sdc":    {"id": 0, "cs": 5, "mosi": 3, "miso": 4, "sck": 2},
    "rtc":    {"id": 0, "sda": 0, "scl": 1, "hz": 100000},
    "eadc":   {"id": 1, "sda": 6, "scl": 7, "hz": 400000},
    "uart":   {"id": 0, "baudrate": 9600, "tx": 16, "rx": 17},
    "switch": {"pwr": 21, "fn": 15},
    "sled":   {"r": 20, "g": 19, "b": 18}
  },
  "tim": {
    "interval": "15m",
    "delta_interval": "2m",
    "wake_haste": "3s",
    "sms":   {"n_reads": 25, "read_delay": "25ms"},
    "ow":    {"n_reads": 3,  "read_delay": "750ms"},
    "bat":   {"n_reads": 7,  "read_delay": "25ms"},
    "itemp": {"n_reads": 7,  "read_delay": "25ms"}
  },
  "sen": {
    "sms": {"loc": "ADS1115", "channels": [
      {"name": "SM1", "ch": 1}, {"name": "SM2", "ch": 2}, {"name": "SM3", "ch": 3}
    ]},
    "ow": {"pin": 14, "conversion": "750ms"}
  },
  "sys": {
    "bat": {"loc": "eADC", "ch": 0, "r1": 220000, "r2": 22000, "vmin": 3.0, "vmax": 4.2}
  }
}`

var embeddedConfigs = map[string][]byte{
	"pico": []byte(cfgPico),
}
