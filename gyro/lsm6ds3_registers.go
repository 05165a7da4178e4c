package gyro

// LSM6DS3 / LSM6DS3TR-C gyroscope register map. Names follow the datasheet.
const (
	regDrdyPulseCfgG byte = 0x0B
	regInt1Ctrl      byte = 0x0D
	regWhoAmI        byte = 0x0F
	regCtrl2G        byte = 0x11
	regCtrl5C        byte = 0x14
	regStatus        byte = 0x1E
	regOutXLG        byte = 0x22
)

// DefaultAddress is the 7-bit address with SA0 pulled high.
const DefaultAddress = 0x6A

// WHO_AM_I values
const (
	chipIDLSM6DS3    byte = 0x69
	chipIDLSM6DS3TRC byte = 0x6A
)

var validChipIDs = []byte{chipIDLSM6DS3, chipIDLSM6DS3TRC}

// OutputDataRate is the ODR_G[3:0] field of CTRL2_G.
type OutputDataRate byte

const (
	ODRPowerDown OutputDataRate = 0b0000 << 4
	ODR12_5Hz    OutputDataRate = 0b0001 << 4
	ODR26Hz      OutputDataRate = 0b0010 << 4
	ODR52Hz      OutputDataRate = 0b0011 << 4
	ODR104Hz     OutputDataRate = 0b0100 << 4
	ODR208Hz     OutputDataRate = 0b0101 << 4
	ODR416Hz     OutputDataRate = 0b0110 << 4
	ODR833Hz     OutputDataRate = 0b0111 << 4
	ODR1660Hz    OutputDataRate = 0b1000 << 4
)

// odrMask covers ODR_G in CTRL2_G; the low nibble holds full-scale selection.
const odrMask byte = 0xF0

func (o OutputDataRate) String() string {
	switch o {
	case ODRPowerDown:
		return "power-down"
	case ODR12_5Hz:
		return "12.5Hz"
	case ODR26Hz:
		return "26Hz"
	case ODR52Hz:
		return "52Hz"
	case ODR104Hz:
		return "104Hz"
	case ODR208Hz:
		return "208Hz"
	case ODR416Hz:
		return "416Hz"
	case ODR833Hz:
		return "833Hz"
	case ODR1660Hz:
		return "1660Hz"
	default:
		return "unknown"
	}
}

// FullScale is the FS_G[1:0] and FS_125 field of CTRL2_G.
type FullScale byte

const (
	FS250dps  FullScale = 0b00 << 2
	FS500dps  FullScale = 0b01 << 2
	FS1000dps FullScale = 0b10 << 2
	FS2000dps FullScale = 0b11 << 2
	FS125dps  FullScale = 0b1 << 1
)

// Sensitivity returns the angular rate of one LSB in milli-degrees per second.
func (fs FullScale) Sensitivity() float64 {
	switch fs {
	case FS125dps:
		return 4.375
	case FS500dps:
		return 17.5
	case FS1000dps:
		return 35.0
	case FS2000dps:
		return 70.0
	default:
		return 8.75
	}
}

func (fs FullScale) String() string {
	switch fs {
	case FS125dps:
		return "125dps"
	case FS250dps:
		return "250dps"
	case FS500dps:
		return "500dps"
	case FS1000dps:
		return "1000dps"
	case FS2000dps:
		return "2000dps"
	default:
		return "unknown"
	}
}

// INT1_CTRL
const int1DrdyG byte = 0b10

// STATUS_REG: gyroscope new data available
const statusGDA byte = 0b10

// DRDY_PULSE_CFG_G: data-ready signalled as a 75us pulse instead of a latched level
const drdyPulsed byte = 1 << 7

// SelfTestMode is the ST_G[1:0] field of CTRL5_C.
type SelfTestMode byte

const (
	SelfTestNormal   SelfTestMode = 0b00 << 2
	SelfTestPositive SelfTestMode = 0b01 << 2
	SelfTestNegative SelfTestMode = 0b11 << 2
)

const selfTestMask byte = 0b11 << 2

func (m SelfTestMode) String() string {
	switch m {
	case SelfTestPositive:
		return "positive"
	case SelfTestNegative:
		return "negative"
	default:
		return "normal"
	}
}

// Self-test output change limits at 2000 dps full scale.
const (
	selfTestMinMdps = 150000.0
	selfTestMaxMdps = 700000.0
)
