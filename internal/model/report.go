package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Placeholder shown when a referenced entity no longer exists
const NotAvailable = "N/A"

// DashboardTotals aggregates every settled reading in scope
type DashboardTotals struct {
	TotalMachines    int              `json:"total_machines"`
	TotalClients     int              `json:"total_clients"`
	TotalOperators   int              `json:"total_operators"`
	TotalReadings    int              `json:"total_readings"`
	TotalGross       decimal.Decimal  `json:"total_gross"`
	TotalCommissions decimal.Decimal  `json:"total_commissions"` // client + operator
	TotalNet         decimal.Decimal  `json:"total_net"`
	TopMachines      []MachineRanking `json:"top_machines"`
}

// MachineRanking is one entry of the top machines by revenue
type MachineRanking struct {
	MachineID   uuid.UUID       `json:"machine_id"`
	MachineCode string          `json:"machine_code"`
	MachineName string          `json:"machine_name"`
	ClientName  string          `json:"client_name"`
	TotalGross  decimal.Decimal `json:"total_gross"`
	Readings    int             `json:"readings"`
}

// MachineSummary is a machine annotated with the names of what it references
type MachineSummary struct {
	Machine
	ClientName   string `json:"client_name"`
	RegionName   string `json:"region_name"`
	OperatorName string `json:"operator_name"`
}

type MachineReport struct {
	Machine       MachineSummary  `json:"machine"`
	Readings      []Reading       `json:"readings"`
	TotalReadings int             `json:"total_readings"`
	TotalGross    decimal.Decimal `json:"total_gross"`
	TotalNet      decimal.Decimal `json:"total_net"`
}

type ClientReport struct {
	Client          Client           `json:"client"`
	Machines        []MachineSummary `json:"machines"`
	Readings        []Reading        `json:"readings"`
	TotalReadings   int              `json:"total_readings"`
	TotalGross      decimal.Decimal  `json:"total_gross"`
	TotalCommission decimal.Decimal  `json:"total_commission"` // client commission only
}

type RegionReport struct {
	Region        Region           `json:"region"`
	Machines      []MachineSummary `json:"machines"`
	Readings      []Reading        `json:"readings"`
	TotalMachines int              `json:"total_machines"`
	TotalGross    decimal.Decimal  `json:"total_gross"`
	TotalNet      decimal.Decimal  `json:"total_net"`
}

// Receipt summarizes one round of readings taken at a client
type Receipt struct {
	ClientID                uuid.UUID       `json:"client_id"`
	ClientName              string          `json:"client_name"`
	OperatorName            string          `json:"operator_name,omitempty"`
	Date                    time.Time       `json:"date"`
	Lines                   []ReceiptLine   `json:"lines"`
	TotalGross              decimal.Decimal `json:"total_gross"`
	TotalClientCommission   decimal.Decimal `json:"total_client_commission"`
	TotalOperatorCommission decimal.Decimal `json:"total_operator_commission"`
	TotalNet                decimal.Decimal `json:"total_net"`
}

type ReceiptLine struct {
	ReadingID   uuid.UUID       `json:"reading_id"`
	MachineCode string          `json:"machine_code"`
	MachineName string          `json:"machine_name"`
	GrossValue  decimal.Decimal `json:"gross_value"`
	NetValue    decimal.Decimal `json:"net_value"`
}
