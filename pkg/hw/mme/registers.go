package mme

// Registers is the engine register file the macro engine runs against. It is
// owned by the surrounding 3D engine; macros only ever write values to
// addresses (send) and read values back (the read operation). The engine
// never interprets the values it moves.
type Registers interface {
	WriteRegister(address uint32, value uint32)
	ReadRegisterValue(address uint32) uint32
}

// RegisterWrite is one recorded send: a value written to an engine register
// address.
type RegisterWrite struct {
	Address uint32
	Value   uint32
}

// RecordingRegisters is a Registers implementation backed by a plain map.
// Writes are applied to the map and appended, in order, to the Writes log.
// It backs the CLI and the test suites; a real embedding supplies the 3D
// engine register file instead.
type RecordingRegisters struct {
	Values map[uint32]uint32
	Writes []RegisterWrite
}

func NewRecordingRegisters() *RecordingRegisters {
	return &RecordingRegisters{
		Values: make(map[uint32]uint32),
	}
}

func (r *RecordingRegisters) WriteRegister(address uint32, value uint32) {
	r.Values[address] = value
	r.Writes = append(r.Writes, RegisterWrite{Address: address, Value: value})
}

func (r *RecordingRegisters) ReadRegisterValue(address uint32) uint32 {
	return r.Values[address]
}

// Seed presets a register value without recording a write.
func (r *RecordingRegisters) Seed(address uint32, value uint32) {
	r.Values[address] = value
}

// Reset clears the write log but keeps seeded register values.
func (r *RecordingRegisters) Reset() {
	r.Writes = nil
}
