package importer

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uledger-dev/uledger/internal/amount"
	"github.com/uledger-dev/uledger/internal/ledger"
	"github.com/uledger-dev/uledger/internal/model"
	"github.com/uledger-dev/uledger/internal/store"
)

const chaseHeader = "Details,Posting Date,Description,Amount,Type,Balance,Check or Slip #\n"

func parseChaseFixture(t *testing.T) []model.BankTransaction {
	t.Helper()
	f, err := os.Open("testdata/chase_checking.csv")
	require.NoError(t, err)
	defer f.Close()

	txns, err := (&ChaseParser{}).Parse(f)
	require.NoError(t, err)
	return txns
}

func TestChaseParser_Parse(t *testing.T) {
	txns := parseChaseFixture(t)
	require.Len(t, txns, 6)

	assert.Equal(t, "GITHUB *PRO SUBSCRIPTION", txns[0].Description)
	assert.Equal(t, model.Withdrawal, txns[0].Kind)
	assert.Equal(t, "4.00", amount.Text(txns[0].Amount))
	assert.Equal(t, "-4.00", amount.Text(txns[0].Signed()))
	assert.Equal(t, "ACH_DEBIT", txns[0].Type)
	assert.Equal(t, 2025, txns[0].Date.Year())
	assert.Equal(t, 1, int(txns[0].Date.Month()))
	assert.Equal(t, 3, txns[0].Date.Day())
	assert.Equal(t, "chase_20250103_GITHUBPROS", txns[0].Reference)

	assert.Equal(t, "ACME CONSULTING INVOICE 1042", txns[3].Description)
	assert.Equal(t, model.Deposit, txns[3].Kind)
	assert.Equal(t, "3500.00", amount.Text(txns[3].Amount))

	assert.Equal(t, 22, txns[5].Date.Day())
}

func TestChaseParser_Signs(t *testing.T) {
	for _, txn := range parseChaseFixture(t) {
		assert.True(t, txn.Amount.IsPositive(), "amount is a magnitude for %s", txn.Description)
		if txn.Description == "ACME CONSULTING INVOICE 1042" {
			assert.True(t, txn.Signed().IsPositive())
		} else {
			assert.True(t, txn.Signed().IsNegative(), "expected negative for %s", txn.Description)
		}
	}
}

func TestChaseParser_ColumnsByHeader(t *testing.T) {
	in := "Type,Amount,Posting Date,Details,Description\n" +
		"CHECK_PAID,-12.00,02/01/2025,CHECK,CHECK 1001\n" +
		"DEPOSIT,40.5,02/02/2025,dslip,BRANCH DEPOSIT\n"
	txns, err := (&ChaseParser{}).Parse(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, txns, 2)
	assert.Equal(t, model.Withdrawal, txns[0].Kind)
	assert.Equal(t, "12.00", amount.Text(txns[0].Amount))
	assert.Equal(t, "CHECK_PAID", txns[0].Type)
	assert.Equal(t, "chase_20250201_CHECK1001", txns[0].Reference)
	assert.Equal(t, model.Deposit, txns[1].Kind)
	assert.Equal(t, "40.5", amount.Text(txns[1].Amount))
}

func TestChaseParser_Errors(t *testing.T) {
	tests := []struct {
		name string
		row  string
		want string
	}{
		{"bad date", "DEBIT,NOTADATE,desc,-4.00,ACH_DEBIT,100.00,\n", "parsing date"},
		{"bad amount", "DEBIT,01/03/2025,desc,NOTANUMBER,ACH_DEBIT,100.00,\n", "parsing amount"},
		{"short row", "DEBIT,01/03/2025,desc\n", "reading chase CSV"},
		{"unknown details", "FEE,01/03/2025,desc,-4.00,ACH_DEBIT,100.00,\n", `unknown details "FEE"`},
		{"debit with positive amount", "DEBIT,01/03/2025,desc,4.00,ACH_DEBIT,100.00,\n", "DEBIT row with amount 4.00"},
		{"credit with negative amount", "CREDIT,01/03/2025,desc,-4.00,ACH_CREDIT,100.00,\n", "CREDIT row with amount -4.00"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := (&ChaseParser{}).Parse(strings.NewReader(chaseHeader + tt.row))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestChaseParser_EmptyFile(t *testing.T) {
	txns, err := (&ChaseParser{}).Parse(strings.NewReader(chaseHeader))
	require.NoError(t, err)
	assert.Nil(t, txns)

	txns, err = (&ChaseParser{}).Parse(strings.NewReader(""))
	require.NoError(t, err)
	assert.Nil(t, txns)

	_, err = (&ChaseParser{}).Parse(strings.NewReader("Posting Date,Description,Amount\n"))
	assert.ErrorContains(t, err, `missing "Details" column`)
}

func TestApply_UnknownKind(t *testing.T) {
	a := newAccount(t)
	_, err := Apply(context.Background(), a, []model.BankTransaction{{Amount: amount.MustParse("1"), Reference: "r1"}})
	assert.ErrorContains(t, err, "row 1 (r1): unknown transaction kind")
	assert.Equal(t, 0, a.LastSeq())
}

func TestGenericParser(t *testing.T) {
	in := "date,description,amount\n2025-02-01, rent ,-1200.00\n2025-02-03,salary,4000\n"
	txns, err := (&GenericParser{}).Parse(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, txns, 2)
	assert.Equal(t, model.Withdrawal, txns[0].Kind)
	assert.Equal(t, "1200.00", amount.Text(txns[0].Amount))
	assert.Equal(t, "generic_20250201_rent", txns[0].Reference)
	assert.Equal(t, model.Deposit, txns[1].Kind)
	assert.Equal(t, "4000", amount.Text(txns[1].Amount))

	_, err = (&GenericParser{}).Parse(strings.NewReader("date,description,amount\n02/01/2025,x,1\n"))
	assert.ErrorContains(t, err, "parsing date")
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	assert.Nil(t, r.Get("chase"))

	r.Register(&ChaseParser{})
	require.NotNil(t, r.Get("chase"))
	assert.NotNil(t, r.Get("CHASE"))
	assert.Panics(t, func() { r.Register(&ChaseParser{}) })

	d := DefaultRegistry()
	assert.ElementsMatch(t, []string{"chase", "generic"}, d.Formats())
}

func TestScan(t *testing.T) {
	dir := t.TempDir()
	processed := filepath.Join(dir, "import", "processed")
	require.NoError(t, os.MkdirAll(processed, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "import", "bank.csv"), []byte("data"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "import", "notes.txt"), []byte("data"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(processed, "old.csv"), []byte("data"), 0o644))

	files, err := Scan(dir)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "bank.csv", files[0].Name)
	assert.Equal(t, int64(4), files[0].Size)

	files, err = Scan(t.TempDir())
	require.NoError(t, err)
	assert.Nil(t, files)
}

func TestMarkProcessed(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "import"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "import", "bank.csv"), []byte("data"), 0o644))

	require.NoError(t, MarkProcessed(dir, "bank.csv"))

	_, err := os.Stat(filepath.Join(dir, "import", "bank.csv"))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(dir, "import", "processed", "bank.csv"))
	assert.NoError(t, err)
}

func newAccount(t *testing.T) *ledger.Account {
	t.Helper()
	l := ledger.New(store.NewMemory())
	a, err := l.CreateAccount(context.Background(), ledger.NewAccount{ID: "chk", Name: "checking", Region: "US"})
	require.NoError(t, err)
	return a
}

func TestApply(t *testing.T) {
	ctx := context.Background()
	a := newAccount(t)
	_, err := a.Deposit(ctx, amount.MustParse("5200.00"), "opening balance")
	require.NoError(t, err)

	res, err := Apply(ctx, a, parseChaseFixture(t))
	require.NoError(t, err)
	assert.Equal(t, 1, res.Deposits)
	assert.Equal(t, 5, res.Withdrawals)
	require.Len(t, res.Records, 6)
	assert.Equal(t, model.Withdrawal, res.Records[0].Kind)
	assert.Equal(t, "4.00", amount.Text(res.Records[0].Amount))
	assert.Equal(t, "GITHUB *PRO SUBSCRIPTION", res.Records[0].Description)

	assert.Equal(t, "8468.49", amount.Text(a.Balance()))
	assert.Equal(t, 7, a.LastSeq())
}

func TestApply_StopsAtFirstFailure(t *testing.T) {
	ctx := context.Background()
	a := newAccount(t)
	txns := []model.BankTransaction{
		{Description: "refund", Kind: model.Deposit, Amount: amount.MustParse("3"), Reference: "r1"},
		{Description: "rent", Kind: model.Withdrawal, Amount: amount.MustParse("10"), Reference: "r2"},
		{Description: "coffee", Kind: model.Withdrawal, Amount: amount.MustParse("1"), Reference: "r3"},
	}

	res, err := Apply(ctx, a, txns)
	require.Error(t, err)
	assert.ErrorIs(t, err, ledger.ErrInsufficientFunds)
	assert.Contains(t, err.Error(), "row 2 (r2)")
	assert.Equal(t, 1, res.Deposits)
	assert.Equal(t, 0, res.Withdrawals)
	assert.Equal(t, "3.00", amount.Text(a.Balance()))
}

func TestApply_LongDescriptionTruncated(t *testing.T) {
	a := newAccount(t)
	long := strings.Repeat("x", 80)
	res, err := Apply(context.Background(), a, []model.BankTransaction{{Description: long, Kind: model.Deposit, Amount: amount.MustParse("1")}})
	require.NoError(t, err)
	assert.Len(t, res.Records[0].Description, ledger.MaxDescriptionLen)
}
