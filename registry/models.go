package registry

// Device is a row in device_table: one device patched to the optical switch.
// OutPort is the switch port the device transmits into (switch-side ingress);
// InPort is the switch port the device receives from (switch-side egress).
type Device struct {
	PolatisName string   `gorm:"column:polatis_name;primaryKey"`
	InPort      int      `gorm:"column:in_port"`
	OutPort     int      `gorm:"column:out_port"`
	MaxInputDbm *float64 `gorm:"column:max_input_dbm"`
}

// TableName maps Device onto the legacy table name.
func (Device) TableName() string { return "device_table" }

// Booking is a row in ports_new: the owner column holds a comma-separated
// list of users currently booked on the device.
type Booking struct {
	Name  string `gorm:"column:name;primaryKey"`
	Owner string `gorm:"column:owner"`
}

// TableName maps Booking onto the legacy table name.
func (Booking) TableName() string { return "ports_new" }
