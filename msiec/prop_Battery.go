package msiec

const (
	PropBatteryMode          = "battery_mode"
	PropChargeStartThreshold = "charge_control_start_threshold"
	PropChargeEndThreshold   = "charge_control_end_threshold"
)

// battery_mode と両閾値は同じレジスタを共有する。モードの 3 値は
// 充電上限 100%/80%/60% を end オフセット (0x80) で符号化したものに一致する。
// 書き込みは完全な最終バイトで、相手側の現在値に依存しない。
func batteryProperties() []PropertyDesc {
	return []PropertyDesc{
		{
			Name: PropBatteryMode, Group: GroupBattery, Addr: 0xef,
			Aliases: map[string][]byte{
				"max":    {0xe4},
				"medium": {0xd0},
				"min":    {0xbc},
			},
		},
		{
			Name: PropChargeStartThreshold, Group: GroupBattery, Addr: 0xef,
			Decoder: ThresholdDesc{Offset: 0x8a, RangeMin: 0x8a, RangeMax: 0xe4},
		},
		{
			Name: PropChargeEndThreshold, Group: GroupBattery, Addr: 0xef,
			Decoder: ThresholdDesc{Offset: 0x80, RangeMin: 0x8a, RangeMax: 0xe4},
		},
	}
}
