package settlement

import (
	"sort"
	"time"

	"github.com/fabiodmueller-cmd/CASSINO/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DefaultTopN is the number of machines listed on the dashboard.
const DefaultTopN = 5

// Catalog indexes the metadata readings are joined against.
type Catalog struct {
	machines  []model.Machine
	byMachine map[uuid.UUID]model.Machine
	clients   map[uuid.UUID]model.Client
	regions   map[uuid.UUID]model.Region
	operators map[uuid.UUID]model.Operator
}

func NewCatalog(machines []model.Machine, clients []model.Client, regions []model.Region, operators []model.Operator) Catalog {
	c := Catalog{
		machines:  machines,
		byMachine: make(map[uuid.UUID]model.Machine, len(machines)),
		clients:   make(map[uuid.UUID]model.Client, len(clients)),
		regions:   make(map[uuid.UUID]model.Region, len(regions)),
		operators: make(map[uuid.UUID]model.Operator, len(operators)),
	}
	for _, m := range machines {
		c.byMachine[m.ID] = m
	}
	for _, cl := range clients {
		c.clients[cl.ID] = cl
	}
	for _, r := range regions {
		c.regions[r.ID] = r
	}
	for _, o := range operators {
		c.operators[o.ID] = o
	}
	return c
}

func (c Catalog) Machine(id uuid.UUID) (model.Machine, bool) {
	m, ok := c.byMachine[id]
	return m, ok
}

func (c Catalog) Client(id uuid.UUID) (model.Client, bool) {
	cl, ok := c.clients[id]
	return cl, ok
}

func (c Catalog) Region(id uuid.UUID) (model.Region, bool) {
	r, ok := c.regions[id]
	return r, ok
}

func (c Catalog) ClientName(id uuid.UUID) string {
	if cl, ok := c.clients[id]; ok {
		return cl.Name
	}
	return model.NotAvailable
}

func (c Catalog) RegionName(id uuid.UUID) string {
	if r, ok := c.regions[id]; ok {
		return r.Name
	}
	return model.NotAvailable
}

// OperatorName returns "" for a nil id and N/A for a dangling one.
func (c Catalog) OperatorName(id *uuid.UUID) string {
	if id == nil {
		return ""
	}
	if o, ok := c.operators[*id]; ok {
		return o.Name
	}
	return model.NotAvailable
}

func (c Catalog) Summarize(m model.Machine) model.MachineSummary {
	return model.MachineSummary{
		Machine:      m,
		ClientName:   c.ClientName(m.ClientID),
		RegionName:   c.RegionName(m.RegionID),
		OperatorName: c.OperatorName(m.OperatorID),
	}
}

func (c Catalog) machinesWhere(keep func(model.Machine) bool) ([]model.MachineSummary, map[uuid.UUID]bool) {
	summaries := make([]model.MachineSummary, 0)
	ids := make(map[uuid.UUID]bool)
	for _, m := range c.machines {
		if keep(m) {
			summaries = append(summaries, c.Summarize(m))
			ids[m.ID] = true
		}
	}
	return summaries, ids
}

// Totals is a plain arithmetic fold over readings, one row per reading.
type Totals struct {
	Count              int
	Gross              decimal.Decimal
	ClientCommission   decimal.Decimal
	OperatorCommission decimal.Decimal
	Net                decimal.Decimal
}

func (t Totals) Commissions() decimal.Decimal {
	return t.ClientCommission.Add(t.OperatorCommission)
}

func Sum(readings []model.Reading) Totals {
	t := Totals{
		Gross:              decimal.Zero,
		ClientCommission:   decimal.Zero,
		OperatorCommission: decimal.Zero,
		Net:                decimal.Zero,
	}
	for _, r := range readings {
		t.Count++
		t.Gross = t.Gross.Add(r.GrossValue)
		t.ClientCommission = t.ClientCommission.Add(r.ClientCommission)
		t.OperatorCommission = t.OperatorCommission.Add(r.OperatorCommission)
		t.Net = t.Net.Add(r.NetValue)
	}
	return t
}

// NewestFirst returns a copy sorted by reading date, latest first. Equal dates keep input order.
func NewestFirst(readings []model.Reading) []model.Reading {
	sorted := make([]model.Reading, len(readings))
	copy(sorted, readings)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].ReadingDate.After(sorted[j].ReadingDate)
	})
	return sorted
}

func filterByMachines(readings []model.Reading, ids map[uuid.UUID]bool) []model.Reading {
	out := make([]model.Reading, 0)
	for _, r := range readings {
		if ids[r.MachineID] {
			out = append(out, r)
		}
	}
	return out
}

// InRange keeps readings whose date falls in [from, to]. Zero bounds are open.
func InRange(readings []model.Reading, from, to time.Time) []model.Reading {
	if from.IsZero() && to.IsZero() {
		return readings
	}
	out := make([]model.Reading, 0, len(readings))
	for _, r := range readings {
		if !from.IsZero() && r.ReadingDate.Before(from) {
			continue
		}
		if !to.IsZero() && r.ReadingDate.After(to) {
			continue
		}
		out = append(out, r)
	}
	return out
}

// Dashboard folds every reading into global totals. clients and operators are
// plain counts; machines counts only active ones.
func Dashboard(readings []model.Reading, catalog Catalog, topN int) model.DashboardTotals {
	totals := Sum(readings)

	activeMachines := 0
	for _, m := range catalog.machines {
		if m.Active {
			activeMachines++
		}
	}

	return model.DashboardTotals{
		TotalMachines:    activeMachines,
		TotalClients:     len(catalog.clients),
		TotalOperators:   len(catalog.operators),
		TotalReadings:    totals.Count,
		TotalGross:       totals.Gross,
		TotalCommissions: totals.Commissions(),
		TotalNet:         totals.Net,
		TopMachines:      TopMachines(readings, catalog, topN),
	}
}

// TopMachines groups readings by machine, sums gross and returns the n best,
// highest first. Ties keep the order in which machines first appear in readings.
func TopMachines(readings []model.Reading, catalog Catalog, n int) []model.MachineRanking {
	if n <= 0 {
		return []model.MachineRanking{}
	}

	index := make(map[uuid.UUID]int)
	rankings := make([]model.MachineRanking, 0)
	for _, r := range readings {
		i, ok := index[r.MachineID]
		if !ok {
			i = len(rankings)
			index[r.MachineID] = i
			rankings = append(rankings, model.MachineRanking{
				MachineID:   r.MachineID,
				MachineCode: model.NotAvailable,
				MachineName: model.NotAvailable,
				ClientName:  model.NotAvailable,
				TotalGross:  decimal.Zero,
			})
			if m, found := catalog.Machine(r.MachineID); found {
				rankings[i].MachineCode = m.Code
				rankings[i].MachineName = m.Name
				rankings[i].ClientName = catalog.ClientName(m.ClientID)
			}
		}
		rankings[i].TotalGross = rankings[i].TotalGross.Add(r.GrossValue)
		rankings[i].Readings++
	}

	sort.SliceStable(rankings, func(i, j int) bool {
		return rankings[i].TotalGross.GreaterThan(rankings[j].TotalGross)
	})

	if n < len(rankings) {
		rankings = rankings[:n]
	}
	return rankings
}

func MachineReport(machineID uuid.UUID, readings []model.Reading, catalog Catalog) (model.MachineReport, error) {
	machine, ok := catalog.Machine(machineID)
	if !ok {
		return model.MachineReport{}, &NotFoundError{Entity: "machine", ID: machineID.String()}
	}

	matching := NewestFirst(filterByMachines(readings, map[uuid.UUID]bool{machineID: true}))
	totals := Sum(matching)

	return model.MachineReport{
		Machine:       catalog.Summarize(machine),
		Readings:      matching,
		TotalReadings: totals.Count,
		TotalGross:    totals.Gross,
		TotalNet:      totals.Net,
	}, nil
}

// ClientReport totals the readings of every machine the client owns.
// TotalCommission is the client's share only; operator commission is excluded.
func ClientReport(clientID uuid.UUID, readings []model.Reading, catalog Catalog) (model.ClientReport, error) {
	client, ok := catalog.Client(clientID)
	if !ok {
		return model.ClientReport{}, &NotFoundError{Entity: "client", ID: clientID.String()}
	}

	machines, ids := catalog.machinesWhere(func(m model.Machine) bool { return m.ClientID == clientID })
	matching := NewestFirst(filterByMachines(readings, ids))
	totals := Sum(matching)

	return model.ClientReport{
		Client:          client,
		Machines:        machines,
		Readings:        matching,
		TotalReadings:   totals.Count,
		TotalGross:      totals.Gross,
		TotalCommission: totals.ClientCommission,
	}, nil
}

func RegionReport(regionID uuid.UUID, readings []model.Reading, catalog Catalog) (model.RegionReport, error) {
	region, ok := catalog.Region(regionID)
	if !ok {
		return model.RegionReport{}, &NotFoundError{Entity: "region", ID: regionID.String()}
	}

	machines, ids := catalog.machinesWhere(func(m model.Machine) bool { return m.RegionID == regionID })
	matching := NewestFirst(filterByMachines(readings, ids))
	totals := Sum(matching)

	return model.RegionReport{
		Region:        region,
		Machines:      machines,
		Readings:      matching,
		TotalMachines: len(machines),
		TotalGross:    totals.Gross,
		TotalNet:      totals.Net,
	}, nil
}

// BuildReceipt summarizes a round of readings for one client, lines in input order.
func BuildReceipt(client model.Client, readings []model.Reading, catalog Catalog, date time.Time) model.Receipt {
	totals := Sum(readings)

	receipt := model.Receipt{
		ClientID:                client.ID,
		ClientName:              client.Name,
		Date:                    date,
		Lines:                   make([]model.ReceiptLine, 0, len(readings)),
		TotalGross:              totals.Gross,
		TotalClientCommission:   totals.ClientCommission,
		TotalOperatorCommission: totals.OperatorCommission,
		TotalNet:                totals.Net,
	}

	for _, r := range readings {
		line := model.ReceiptLine{
			ReadingID:   r.ID,
			MachineCode: model.NotAvailable,
			MachineName: model.NotAvailable,
			GrossValue:  r.GrossValue,
			NetValue:    r.NetValue,
		}
		if m, ok := catalog.Machine(r.MachineID); ok {
			line.MachineCode = m.Code
			line.MachineName = m.Name
		}
		receipt.Lines = append(receipt.Lines, line)

		if receipt.OperatorName == "" && r.OperatorID != nil {
			receipt.OperatorName = catalog.OperatorName(r.OperatorID)
		}
	}

	return receipt
}
