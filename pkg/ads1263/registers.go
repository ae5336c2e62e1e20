package ads1263

// Register addresses (ADS1263 datasheet, table 9-33).
const (
	RegID        = 0x00
	RegPower     = 0x01
	RegInterface = 0x02
	RegMode0     = 0x03
	RegMode1     = 0x04
	RegMode2     = 0x05
	RegInpMux    = 0x06
	RegOfCal0    = 0x07
	RegOfCal1    = 0x08
	RegOfCal2    = 0x09
	RegFsCal0    = 0x0A
	RegFsCal1    = 0x0B
	RegFsCal2    = 0x0C
	RegIDACMux   = 0x0D
	RegIDACMag   = 0x0E
	RegRefMux    = 0x0F
	RegTDACP     = 0x10
	RegTDACN     = 0x11
	RegGPIOCon   = 0x12
	RegGPIODir   = 0x13
	RegGPIOData  = 0x14
	RegADC2Cfg   = 0x15
	RegADC2Mux   = 0x16
	RegADC2OfC0  = 0x17
	RegADC2OfC1  = 0x18
	RegADC2FsC0  = 0x19
	RegADC2FsC1  = 0x1A

	// NumRegisters is the size of the register map.
	NumRegisters = 0x1B
)

// Command opcodes.
const (
	CmdNOP    = 0x00
	CmdReset  = 0x06
	CmdStart1 = 0x08
	CmdStop1  = 0x0A
	CmdStart2 = 0x0C
	CmdStop2  = 0x0E
	CmdRData1 = 0x12
	CmdRData2 = 0x14
	CmdRReg   = 0x20 // | address
	CmdWReg   = 0x40 // | address
)

// ID register layout.
const (
	DevIDShift   = 5
	DevIDADS1262 = 0x0
	DevIDADS1263 = 0x1
	RevIDMask    = 0x1F
)

// INTERFACE register: status byte enabled, checksum mode.
const (
	InterfaceStatus   = 0x04
	InterfaceChecksum = 0x01
	InterfaceDefault  = InterfaceStatus | InterfaceChecksum
)

// MODE0 / MODE1 / MODE2 field positions.
const (
	Mode0ChopShift   = 4
	Mode1FilterShift = 5
	Mode2BypassBit   = 0x80
	Mode2GainShift   = 4
	Mode2RateMask    = 0x0F
)

// Status byte bits returned ahead of conversion data.
const (
	StatusADC2  = 0x80
	StatusADC1  = 0x40
	StatusExtCk = 0x20
	StatusRefL  = 0x10
	StatusPGAL  = 0x08
	StatusPGAH  = 0x04
	StatusPGAD  = 0x02
	StatusReset = 0x01
)

// ChecksumSeed is added to the data byte sum in checksum mode.
const ChecksumSeed = 0x9B

// AINCOM is the common input used as the negative leg in single-ended mode.
const AINCOM = 0x0A

// Checksum computes the checksum byte the converter appends to a conversion
// result when the INTERFACE register selects checksum mode.
func Checksum(data []byte) byte {
	sum := byte(ChecksumSeed)
	for _, b := range data {
		sum += b
	}
	return sum
}

var registerNames = [NumRegisters]string{
	"ID", "POWER", "INTERFACE", "MODE0", "MODE1", "MODE2", "INPMUX",
	"OFCAL0", "OFCAL1", "OFCAL2", "FSCAL0", "FSCAL1", "FSCAL2",
	"IDACMUX", "IDACMAG", "REFMUX", "TDACP", "TDACN",
	"GPIOCON", "GPIODIR", "GPIODAT",
	"ADC2CFG", "ADC2MUX", "ADC2OFC0", "ADC2OFC1", "ADC2FSC0", "ADC2FSC1",
}

// RegisterName returns the datasheet name of a register address.
func RegisterName(addr byte) string {
	if int(addr) >= len(registerNames) {
		return "?"
	}
	return registerNames[addr]
}
