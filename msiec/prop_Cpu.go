package msiec

const (
	PropCpuRealtimeTemperature = "cpu_realtime_temperature"
	PropCpuRealtimeFanSpeed    = "cpu_realtime_fan_speed"
	PropCpuBasicFanSpeed       = "cpu_basic_fan_speed"
)

func cpuProperties() []PropertyDesc {
	return []PropertyDesc{
		{
			Name: PropCpuRealtimeTemperature, Group: GroupCpu, Access: ReadOnly,
			Addr:    0x68,
			Decoder: PlainDesc{Unit: "°C"},
		},
		{
			Name: PropCpuRealtimeFanSpeed, Group: GroupCpu, Access: ReadOnly,
			Addr:    0x71,
			Decoder: ScaledDesc{Min: 0x19, Max: 0x37, Unit: "%"},
		},
		{
			// gpu_realtime_fan_speed と同じレジスタを読む世代がある
			Name: PropCpuBasicFanSpeed, Group: GroupCpu, Addr: 0x89,
			Decoder: ScaledDesc{Min: 0x00, Max: 0x0f, Unit: "%"},
		},
	}
}
