package status

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/compose-network/contract-migrations/internal/artifacts"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/samber/lo"
)

const notDeployed = "-"

type artifactLister interface {
	All() []*artifacts.Artifact
}

// Render writes a table of deployment records on chainID for every artifact
func Render(w io.Writer, store artifactLister, chainID uint64) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.Style().Title.Align = text.AlignCenter
	t.SetTitle(fmt.Sprintf("Deployments on chain %d", chainID))
	t.AppendHeader(table.Row{"Contract", "Address", "Transaction", "Libraries", "Deployed At"})

	for _, artifact := range store.All() {
		record, ok := artifact.Deployment(chainID)
		if !ok {
			t.AppendRow(table.Row{artifact.Name, notDeployed, notDeployed, formatUnlinked(artifact), notDeployed})
			continue
		}

		t.AppendRow(table.Row{
			artifact.Name,
			record.Address.Hex(),
			record.TransactionHash.Hex(),
			formatLinks(record),
			record.DeployedAt.UTC().Format("2006-01-02 15:04:05"),
		})
	}

	t.Render()
}

func formatLinks(record artifacts.NetworkRecord) string {
	if len(record.Links) == 0 {
		return notDeployed
	}

	names := lo.Keys(record.Links)
	sort.Strings(names)

	return strings.Join(lo.Map(names, func(name string, _ int) string {
		return fmt.Sprintf("%s=%s", name, record.Links[name].Hex())
	}), "\n")
}

func formatUnlinked(artifact *artifacts.Artifact) string {
	unlinked := lo.Uniq(artifact.Unlinked())
	if len(unlinked) == 0 {
		return notDeployed
	}
	return "needs " + strings.Join(unlinked, ", ")
}
