package diagnostics

import "github.com/nanoncore/nano-onulocator/types"

// InterfacePlaceholder is replaced by the escaped short interface (port:index)
// before a pattern is compiled
const InterfacePlaceholder = "{interface}"

// Rule extracts one field from the reply with the given key. The first
// capture group is the value.
type Rule struct {
	Key     string `mapstructure:"key" yaml:"key"`
	Pattern string `mapstructure:"pattern" yaml:"pattern"`
}

// Rules holds an ordered rule list per field; the first rule that yields a
// usable value wins
type Rules struct {
	Status   []Rule `mapstructure:"status" yaml:"status"`
	Name     []Rule `mapstructure:"name" yaml:"name"`
	Distance []Rule `mapstructure:"distance" yaml:"distance"`
	Uptime   []Rule `mapstructure:"uptime" yaml:"uptime"`
	RxONU    []Rule `mapstructure:"rx_onu" yaml:"rx_onu"`
	TxONU    []Rule `mapstructure:"tx_onu" yaml:"tx_onu"`
	RxOLT    []Rule `mapstructure:"rx_olt" yaml:"rx_olt"`
	TxOLT    []Rule `mapstructure:"tx_olt" yaml:"tx_olt"`
}

const (
	bareLevel   = `(-?\d+\.\d+)`
	labeledRx   = `(?i)Rx\s*power\s*:\s*(-?\d+\.?\d*)`
	labeledTx   = `(?i)Tx\s*power\s*:\s*(-?\d+\.?\d*)`
	detailTx    = `(?i)(?:Tx optical power|Tx power|Transmitted optical power)\s*:\s*(-?\d+\.\d+)`
	stateRow    = `(?m)^\s*` + InterfacePlaceholder + `\s+\S+\s+\S+\s+(\S+)`
	phaseState  = `(?i)Phase state\s*:\s*(\w+)`
	plainState  = `(?im)^\s*State\s*:\s*(\w+)`
	nameField   = `(?i)(?:Name|Description)[ \t]*:[ \t]*(.+)`
	distance    = `(?i)Distance\s*:\s*(\d+\s*m)`
	uptimeField = `(?i)(?:Online Duration|Uptime)[ \t]*:[ \t]*(.+)`
	dbmSuffixed = `(?i)(-?\d+\.\d+)\s*\(dbm\)`
)

// DefaultRules returns the ZTE C300/C320 rule set
func DefaultRules() Rules {
	return Rules{
		Status: []Rule{
			{Key: types.KeyState, Pattern: stateRow},
			{Key: types.KeyDetail, Pattern: phaseState},
			{Key: types.KeyDetail, Pattern: plainState},
		},
		Name:     []Rule{{Key: types.KeyDetail, Pattern: nameField}},
		Distance: []Rule{{Key: types.KeyDetail, Pattern: distance}},
		Uptime:   []Rule{{Key: types.KeyDetail, Pattern: uptimeField}},
		RxONU: []Rule{
			{Key: types.KeyONURx, Pattern: labeledRx},
			{Key: types.KeyONURx, Pattern: bareLevel},
		},
		RxOLT: []Rule{
			{Key: types.KeyOLTRx, Pattern: labeledRx},
			{Key: types.KeyOLTRx, Pattern: bareLevel},
		},
		TxONU: []Rule{
			{Key: types.KeyONUTx, Pattern: labeledTx},
			{Key: types.KeyONUTx, Pattern: bareLevel},
			{Key: types.KeyDetail, Pattern: detailTx},
		},
		TxOLT: []Rule{
			{Key: types.KeyOLTTx, Pattern: dbmSuffixed},
		},
	}
}

// Merge replaces every non-empty field list of r with the one from override
func (r Rules) Merge(override Rules) Rules {
	pick := func(base, o []Rule) []Rule {
		if len(o) > 0 {
			return o
		}
		return base
	}
	return Rules{
		Status:   pick(r.Status, override.Status),
		Name:     pick(r.Name, override.Name),
		Distance: pick(r.Distance, override.Distance),
		Uptime:   pick(r.Uptime, override.Uptime),
		RxONU:    pick(r.RxONU, override.RxONU),
		TxONU:    pick(r.TxONU, override.TxONU),
		RxOLT:    pick(r.RxOLT, override.RxOLT),
		TxOLT:    pick(r.TxOLT, override.TxOLT),
	}
}
