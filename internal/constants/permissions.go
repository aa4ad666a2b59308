package constants

const (
	ManageShareholders = "manage_shareholders"
	ManageShares       = "manage_shares"
	ManageTransfers    = "manage_transfers"
	ManageDividends    = "manage_dividends"
	ManageTransactions = "manage_transactions"
	ViewReports        = "view_reports"
	ViewOwnAccount     = "view_own_account"
)
