package deploy

import (
	"io"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"
)

// WriteSummary renders the deployments and script durations of a run as
// tables. The output is meant for humans only.
func WriteSummary(w io.Writer, network Network, deployments []*Deployment, results []ScriptResult) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Contract", "Address", "Tx", "Block", "Gas used"})
	var gas uint64
	for _, d := range deployments {
		name := d.Name
		if d.Reused {
			name += " (reused)"
		}
		table.Append([]string{name, d.Address.Hex(), d.TxHash.Hex(), strconv.FormatUint(d.Block, 10), strconv.FormatUint(d.GasUsed, 10)})
		gas += d.GasUsed
	}
	table.SetFooter([]string{network.Name, "", "", "Total", strconv.FormatUint(gas, 10)})
	table.Render()

	scripts := tablewriter.NewWriter(w)
	scripts.SetHeader([]string{"Script", "Duration", "Result"})
	for _, r := range results {
		result := "ok"
		if r.Err != nil {
			result = r.Err.Error()
		}
		scripts.Append([]string{r.Name, r.Duration.Round(time.Millisecond).String(), result})
	}
	scripts.Render()
}
