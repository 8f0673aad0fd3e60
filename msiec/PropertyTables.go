package msiec

import (
	"slices"
)

// プロパティのグループ。元のドライバの sysfs 階層に対応する。
const (
	GroupSystem  = "system"
	GroupBattery = "battery"
	GroupCpu     = "cpu"
	GroupGpu     = "gpu"
	GroupLed     = "led"
)

// DefaultModel は組み込みのレジスタ割り当てのモデル名です。
const DefaultModel = "default"

// DefaultPropertyTable は組み込みのレジスタ割り当てでテーブルを構築します。
// 定義はグループごとの prop_*.go にあります。組み込み定義が不正な場合は
// プログラミングエラーとして panic します。
func DefaultPropertyTable() PropertyTable {
	descs := slices.Concat(
		systemProperties(),
		batteryProperties(),
		cpuProperties(),
		gpuProperties(),
		ledProperties(),
	)
	table, err := NewPropertyTable(DefaultModel, descs)
	if err != nil {
		panic("msiec: built-in property table is invalid: " + err.Error())
	}
	return table
}
