package msiec

const (
	PropGpuRealtimeTemperature = "gpu_realtime_temperature"
	PropGpuRealtimeFanSpeed    = "gpu_realtime_fan_speed"
)

func gpuProperties() []PropertyDesc {
	return []PropertyDesc{
		{
			Name: PropGpuRealtimeTemperature, Group: GroupGpu, Access: ReadOnly,
			Addr:    0x80,
			Decoder: PlainDesc{Unit: "°C"},
		},
		{
			Name: PropGpuRealtimeFanSpeed, Group: GroupGpu, Access: ReadOnly,
			Addr:    0x89,
			Decoder: PlainDesc{},
		},
	}
}
