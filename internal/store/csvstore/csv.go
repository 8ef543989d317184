package csvstore

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/uledger-dev/uledger/internal/amount"
	"github.com/uledger-dev/uledger/internal/id"
	"github.com/uledger-dev/uledger/internal/model"
)

// AccountHeader is the CSV header for accounts.csv.
const AccountHeader = "account_id,name,wallet_id,region,last_seq,balance"

// TransactionHeader is the CSV header for transactions/<account_id>.csv.
const TransactionHeader = "token,timestamp,kind,amount,balance,description"

// WalletHeader is the CSV header for wallets.csv.
const WalletHeader = "wallet_id,region"

const (
	accountFields = 6
	colAcctID     = 0
	colAcctName   = 1
	colAcctWallet = 2
	colAcctRegion = 3
	colAcctSeq    = 4
	colAcctBal    = 5

	txFields  = 6
	colToken  = 0
	colTime   = 1
	colKind   = 2
	colAmount = 3
	colBal    = 4
	colDesc   = 5

	walletFields    = 2
	colWalletID     = 0
	colWalletRegion = 1

	timeFormat = time.RFC3339Nano
)

// MarshalAccount converts an AccountRow to a CSV row.
func MarshalAccount(a model.AccountRow) []string {
	row := make([]string, accountFields)
	row[colAcctID] = a.ID
	row[colAcctName] = a.Name
	row[colAcctWallet] = a.WalletID
	row[colAcctRegion] = a.Region
	row[colAcctSeq] = strconv.Itoa(a.Seq)
	row[colAcctBal] = amount.Text(a.Balance)
	return row
}

// UnmarshalAccount converts a CSV row to an AccountRow.
func UnmarshalAccount(record []string) (model.AccountRow, error) {
	if len(record) != accountFields {
		return model.AccountRow{}, fmt.Errorf("expected %d fields, got %d", accountFields, len(record))
	}

	seq, err := strconv.Atoi(record[colAcctSeq])
	if err != nil {
		return model.AccountRow{}, fmt.Errorf("parsing last_seq %q: %w", record[colAcctSeq], err)
	}

	bal, err := amount.Parse(record[colAcctBal])
	if err != nil {
		return model.AccountRow{}, fmt.Errorf("parsing balance: %w", err)
	}

	return model.AccountRow{
		ID:       record[colAcctID],
		Name:     record[colAcctName],
		WalletID: record[colAcctWallet],
		Region:   record[colAcctRegion],
		Seq:      seq,
		Balance:  bal,
	}, nil
}

// MarshalTransaction converts a TransactionRow to a CSV row. The account id
// is implied by the file the row lives in.
func MarshalTransaction(tx model.TransactionRow) []string {
	row := make([]string, txFields)
	row[colToken] = tx.Token
	row[colTime] = tx.Time.UTC().Format(timeFormat)
	row[colKind] = tx.Kind.Symbol()
	row[colAmount] = amount.Text(tx.Amount)
	row[colBal] = amount.Text(tx.Balance)
	row[colDesc] = tx.Description
	return row
}

// UnmarshalTransaction converts a CSV row of accountID's file to a TransactionRow.
func UnmarshalTransaction(accountID string, record []string) (model.TransactionRow, error) {
	if len(record) != txFields {
		return model.TransactionRow{}, fmt.Errorf("expected %d fields, got %d", txFields, len(record))
	}

	seq, err := id.ParseTxToken(record[colToken])
	if err != nil {
		return model.TransactionRow{}, err
	}

	ts, err := time.Parse(timeFormat, record[colTime])
	if err != nil {
		return model.TransactionRow{}, fmt.Errorf("parsing timestamp %q: %w", record[colTime], err)
	}

	kind, err := model.ParseKind(record[colKind])
	if err != nil {
		return model.TransactionRow{}, err
	}

	amt, err := amount.Parse(record[colAmount])
	if err != nil {
		return model.TransactionRow{}, fmt.Errorf("parsing amount: %w", err)
	}

	bal, err := amount.Parse(record[colBal])
	if err != nil {
		return model.TransactionRow{}, fmt.Errorf("parsing balance: %w", err)
	}

	return model.TransactionRow{
		AccountID:   accountID,
		Token:       record[colToken],
		Seq:         seq,
		Time:        ts,
		Kind:        kind,
		Amount:      amt,
		Balance:     bal,
		Description: record[colDesc],
	}, nil
}

// ReadAccounts reads accounts.csv.
func ReadAccounts(r io.Reader) ([]model.AccountRow, error) {
	records, err := readRecords(r, accountFields)
	if err != nil {
		return nil, fmt.Errorf("reading accounts CSV: %w", err)
	}

	var accounts []model.AccountRow
	for i, rec := range records {
		acct, err := UnmarshalAccount(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		accounts = append(accounts, acct)
	}
	return accounts, nil
}

// WriteAccounts writes accounts.csv (including header).
func WriteAccounts(w io.Writer, accounts []model.AccountRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(strings.Split(AccountHeader, ",")); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	for i, acct := range accounts {
		if err := cw.Write(MarshalAccount(acct)); err != nil {
			return fmt.Errorf("writing row %d: %w", i+2, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadTransactions reads one account's transaction file.
func ReadTransactions(r io.Reader, accountID string) ([]model.TransactionRow, error) {
	records, err := readRecords(r, txFields)
	if err != nil {
		return nil, fmt.Errorf("reading transactions CSV: %w", err)
	}

	var txs []model.TransactionRow
	for i, rec := range records {
		tx, err := UnmarshalTransaction(accountID, rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		txs = append(txs, tx)
	}
	return txs, nil
}

// WriteTransactions writes one account's transaction file (including header).
func WriteTransactions(w io.Writer, txs []model.TransactionRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(strings.Split(TransactionHeader, ",")); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	for i, tx := range txs {
		if err := cw.Write(MarshalTransaction(tx)); err != nil {
			return fmt.Errorf("writing row %d: %w", i+2, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadWallets reads wallets.csv.
func ReadWallets(r io.Reader) ([]model.WalletRow, error) {
	records, err := readRecords(r, walletFields)
	if err != nil {
		return nil, fmt.Errorf("reading wallets CSV: %w", err)
	}

	var wallets []model.WalletRow
	for _, rec := range records {
		wallets = append(wallets, model.WalletRow{ID: rec[colWalletID], Region: rec[colWalletRegion]})
	}
	return wallets, nil
}

// WriteWallets writes wallets.csv (including header).
func WriteWallets(w io.Writer, wallets []model.WalletRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(strings.Split(WalletHeader, ",")); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	for i, wl := range wallets {
		if err := cw.Write([]string{wl.ID, wl.Region}); err != nil {
			return fmt.Errorf("writing row %d: %w", i+2, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// readRecords returns all data rows, header skipped.
func readRecords(r io.Reader, fields int) ([][]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = fields

	records, err := cr.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) <= 1 {
		return nil, nil
	}
	return records[1:], nil
}
