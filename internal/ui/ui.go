package ui

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
	"github.com/sirupsen/logrus"

	"github.com/ethpandaops/watchoor/internal/collector"
	"github.com/ethpandaops/watchoor/internal/version"
)

// maxRenderedBlocks caps the history pane regardless of the configured
// retention.
const maxRenderedBlocks = 50

// UI renders collector snapshots into a terminal layout, one column
// per endpoint. It never touches the network: Update hands it freshly
// read snapshots and an internal loop redraws.
type UI struct {
	log logrus.FieldLogger
	cfg Config

	app     *tview.Application
	columns []*column

	mu    sync.Mutex
	snaps []*collector.Snapshot

	notify chan struct{}
}

type column struct {
	info EndpointInfo

	conn    *tview.TextView
	network *tview.TextView
	block   *tview.TextView
	gas     *tview.TextView
	fees    *tview.TextView
	delay   *tview.TextView
	pool    *tview.TextView
	blocks  *tview.TextView
}

// New builds the layout for the given endpoints. Quit keys are q, Esc
// and Ctrl-C.
func New(log logrus.FieldLogger, cfg Config, endpoints []EndpointInfo) *UI {
	u := &UI{
		log:    log.WithField("component", "ui"),
		cfg:    cfg,
		app:    tview.NewApplication(),
		notify: make(chan struct{}, 1),
	}

	grid := tview.NewFlex()

	for _, info := range endpoints {
		col := newColumn(info)
		u.columns = append(u.columns, col)
		grid.AddItem(col.layout(), 0, 1, false)
	}

	help := tview.NewTextView()
	help.SetDynamicColors(true)
	help.SetBorder(true)
	help.SetTitle(" Help ")
	help.SetText(fmt.Sprintf(
		" watchoor %s   press [yellow]q[-] to quit   updates every [aqua]%s[-]",
		version.Short(), cfg.RefreshInterval,
	))

	root := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(grid, 0, 1, false).
		AddItem(help, 3, 0, false)

	u.app.SetRoot(root, true)
	u.app.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		switch {
		case event.Key() == tcell.KeyEscape || event.Key() == tcell.KeyCtrlC:
			u.app.Stop()

			return nil
		case event.Rune() == 'q' || event.Rune() == 'Q':
			u.app.Stop()

			return nil
		}

		return event
	})

	return u
}

// Update stores the latest snapshots, ordered like the endpoints given
// to New, and schedules a redraw. Never blocks.
func (u *UI) Update(snaps []*collector.Snapshot) {
	u.mu.Lock()
	u.snaps = snaps
	u.mu.Unlock()

	select {
	case u.notify <- struct{}{}:
	default:
	}
}

// Run drives the terminal until the user quits or ctx is cancelled.
func (u *UI) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		for {
			select {
			case <-ctx.Done():
				u.app.Stop()

				return
			case <-u.notify:
				u.app.QueueUpdateDraw(u.redraw)
			}
		}
	}()

	u.log.Debug("Terminal renderer started")

	return u.app.Run()
}

// Stop terminates the terminal application.
func (u *UI) Stop() {
	u.app.Stop()
}

func (u *UI) redraw() {
	u.mu.Lock()
	snaps := u.snaps
	u.mu.Unlock()

	now := time.Now()

	for i, col := range u.columns {
		if i < len(snaps) && snaps[i] != nil {
			col.update(snaps[i], now)
		}
	}
}

func newColumn(info EndpointInfo) *column {
	return &column{
		info:    info,
		conn:    newPane("Connection"),
		network: newPane("Network"),
		block:   newPane("Block Height"),
		gas:     newPane("Gas Price"),
		fees:    newPane("Fees (EIP-1559)"),
		delay:   newPane("Block Delay"),
		pool:    newPane("Tx Pool"),
		blocks:  newPane("Recent Blocks (newest first)"),
	}
}

func newPane(title string) *tview.TextView {
	view := tview.NewTextView()
	view.SetDynamicColors(true)
	view.SetWrap(true)
	view.SetBorder(true)
	view.SetTitle(" " + title + " ")
	view.SetTitleAlign(tview.AlignLeft)

	return view
}

func (c *column) layout() tview.Primitive {
	flex := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(c.conn, 3, 0, false).
		AddItem(c.network, 3, 0, false).
		AddItem(c.block, 3, 0, false).
		AddItem(c.gas, 3, 0, false).
		AddItem(c.fees, 8, 0, false).
		AddItem(c.delay, 3, 0, false).
		AddItem(c.pool, 0, 2, false).
		AddItem(c.blocks, 0, 3, false)

	flex.SetBorder(true)
	flex.SetTitle(" " + c.info.Name + " ")

	return flex
}

func (c *column) update(snap *collector.Snapshot, now time.Time) {
	c.conn.SetText(c.connText(snap, now))
	c.network.SetText(networkText(snap))
	c.block.SetText(blockText(snap, now))
	c.gas.SetText(gasText(snap))
	c.fees.SetText(c.feesText(snap))
	c.delay.SetText(delayText(snap, now))
	c.pool.SetText(poolText(snap, now))
	c.blocks.SetText(blocksText(snap))

	if snap.BlockDelayAlert(now) {
		c.delay.SetTitle(" ALERT ")
	} else {
		c.delay.SetTitle(" Block Delay ")
	}
}

func (c *column) connText(snap *collector.Snapshot, now time.Time) string {
	status := snap.ConnectionStatus

	color := "red"

	switch status.State {
	case collector.StateConnected:
		color = "green"
	case collector.StateStale:
		color = "yellow"
	}

	text := fmt.Sprintf(
		"Status: [%s]%s[-] | RPC: [aqua]%s[-] | Updated: [yellow]%s[-]",
		color,
		tview.Escape(status.String()),
		tview.Escape(snap.RPCURL),
		Age(snap.LastUpdated, now),
	)

	if status.State == collector.StateStale {
		text += fmt.Sprintf(" | Stale > [yellow]%ds[-]", int(c.info.StaleAfter.Seconds()))
	}

	return text
}

func networkText(snap *collector.Snapshot) string {
	return fmt.Sprintf(
		"Chain ID: [blue]%s[-] | Peers: [green]%s[-]",
		Uint(snap.ChainID), Uint(snap.PeerCount),
	)
}

func blockText(snap *collector.Snapshot, now time.Time) string {
	return fmt.Sprintf(
		"Current Block: [green]%s[-]  ([yellow]%s[-])",
		Uint(snap.BlockNumber),
		BlockAge(snap.LatestBlockTimestampUnix, now),
	)
}

func gasText(snap *collector.Snapshot) string {
	return fmt.Sprintf(
		"Gas Price: [yellow]%s[-] ([gray]%s[-])",
		Gwei(snap.GasPriceWei), Wei(snap.GasPriceWei),
	)
}

func (c *column) feesText(snap *collector.Snapshot) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Base Fee: [yellow]%s[-]   Next: [yellow]%s[-]\n",
		Gwei(snap.BaseFeePerGas), Gwei(snap.NextBaseFeePerGas))

	spike := ""
	if snap.SpikeAlert(c.info.SpikeMultiplier) {
		spike = " [red]SPIKE[-]"
	}

	fmt.Fprintf(&b, "Utilization: [aqua]%s[-] avg   Volatility: [fuchsia]%s[-]%s\n",
		Percent(snap.GasUtilizationMovingAvgPct), Percent(snap.GasVolatilityPct), spike)

	if snap.SuggestedFees != nil {
		fmt.Fprintf(&b, "Safe:     [green]%s[-]\n", TierLine(snap.SuggestedFees.Safe))
		fmt.Fprintf(&b, "Standard: [yellow]%s[-]\n", TierLine(snap.SuggestedFees.Standard))
		fmt.Fprintf(&b, "Fast:     [red]%s[-]\n", TierLine(snap.SuggestedFees.Fast))
	} else {
		fmt.Fprintf(&b, "Safe:     %s\nStandard: %s\nFast:     %s\n",
			notAvailable, notAvailable, notAvailable)
	}

	fmt.Fprintf(&b, "Node Priority Fee: [aqua]%s[-]", Gwei(snap.MaxPriorityFeeSuggested))

	return b.String()
}

func delayText(snap *collector.Snapshot, now time.Time) string {
	threshold := int(snap.BlockDelayThreshold.Seconds())

	if snap.LatestBlockTimestampUnix == nil {
		return fmt.Sprintf("[gray]No block observed yet (threshold %ds).[-]", threshold)
	}

	age := now.Unix() - int64(*snap.LatestBlockTimestampUnix)
	if age < 0 {
		age = 0
	}

	if snap.BlockDelayAlert(now) {
		return fmt.Sprintf(
			"[red]No new block for %ds (threshold %ds). Network or node may be stalled.[-]",
			age, threshold,
		)
	}

	return fmt.Sprintf("[green]Last block %ds ago (threshold %ds).[-]", age, threshold)
}

func poolText(snap *collector.Snapshot, now time.Time) string {
	pool := snap.TxPool
	if pool == nil {
		return "[gray]Set txpool.endpoint (or TXPOOL_URL) to enable pool metrics.[-]"
	}

	var b strings.Builder

	health := "[green]OK[-]"
	if !pool.Healthy {
		health = "[red]Down[-]"
	}

	fmt.Fprintf(&b, "Health: %s | URL: [aqua]%s[-] | Updated: [yellow]%s[-]",
		health, tview.Escape(pool.BaseURL), Age(pool.LastUpdated, now))

	if pool.Error != "" {
		fmt.Fprintf(&b, " | Error: [red]%s[-]", tview.Escape(pool.Error))
	}

	b.WriteString("\n")

	fmt.Fprintf(&b, "Transactions: [green]%s[-]  |  Bundles: [fuchsia]%s[-]  |  Signed Orders: [blue]%s[-]\n",
		Uint(pool.TransactionsCount), Uint(pool.BundlesCount), Uint(pool.SignedOrdersCount))

	for _, tx := range pool.Transactions {
		to := "create"
		if tx.To != nil {
			to = ShortAddress(*tx.To)
		}

		fmt.Fprintf(&b, "[aqua]%s[-] %s → %s %s\n",
			ShortHash(tx.Hash), ShortAddress(tx.From), to, EthValue(tx.Value))
	}

	if pool.HasMore {
		b.WriteString("[gray]...more[-]")
	}

	return strings.TrimRight(b.String(), "\n")
}

func blocksText(snap *collector.Snapshot) string {
	if len(snap.BlockHistory) == 0 {
		return "[gray](no blocks yet)[-]"
	}

	var b strings.Builder

	for i, block := range snap.BlockHistory {
		if i >= maxRenderedBlocks {
			break
		}

		numColor := "gray"
		if i == 0 {
			numColor = "green"
		}

		fmt.Fprintf(&b, "[%s]#%d[-] [aqua]%s[-] [yellow]tx:%d[-] [fuchsia]gas:%.0f%%[-] [gray]fee:%s[-]\n",
			numColor, block.Number, ShortHash(block.Hash),
			block.TxCount, block.UtilizationPct(), GweiNumber(block.BaseFee))
	}

	return strings.TrimRight(b.String(), "\n")
}
