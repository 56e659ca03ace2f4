// Package transactions generates the demo personal-finance dataset.
package transactions

import (
	"fmt"
	"math"
	"math/rand"
	"strconv"
	"time"
)

// Transaction is one row of the demo dataset.
type Transaction struct {
	ID            int64
	Date          time.Time
	Account       string
	Category      string
	Merchant      string
	Amount        float64
	PaymentMethod string
	Recurring     bool
}

// Columns is the demo CSV header, in order.
var Columns = []string{"transaction_id", "date", "account", "category", "merchant", "amount", "payment_method", "is_recurring"}

// Dictionary describes Columns in the column_name,data_type,description form.
var Dictionary = [][]string{
	{"transaction_id", "integer", "Unique, increasing transaction number"},
	{"date", "date", "Day the transaction settled"},
	{"account", "string", "Account the money left"},
	{"category", "string", "Spending category such as groceries, rent or dining"},
	{"merchant", "string", "Merchant or payee name"},
	{"amount", "float", "Amount spent in EUR, always positive"},
	{"payment_method", "string", "card, transfer or cash"},
	{"is_recurring", "boolean", "Whether the payment repeats every month"},
}

type category struct {
	name      string
	weight    int
	min, max  float64
	merchants []string
}

var categories = []category{
	{name: "groceries", weight: 30, min: 8, max: 120, merchants: []string{"FreshMart", "Corner Grocer", "BioMarkt"}},
	{name: "dining", weight: 18, min: 6, max: 90, merchants: []string{"Luigi's", "Noodle Bar", "Cafe Central"}},
	{name: "transport", weight: 15, min: 2, max: 60, merchants: []string{"City Transit", "RideNow", "FuelStop"}},
	{name: "shopping", weight: 12, min: 10, max: 250, merchants: []string{"MegaStore", "BookNook", "TechHub"}},
	{name: "entertainment", weight: 10, min: 5, max: 80, merchants: []string{"Cinema Plaza", "StreamFlix", "Concert Hall"}},
	{name: "health", weight: 7, min: 5, max: 150, merchants: []string{"Pharmacy Plus", "Dental Care"}},
	{name: "travel", weight: 8, min: 40, max: 600, merchants: []string{"SkyAir", "Hotel Europa", "RailLink"}},
}

type recurringPayment struct {
	day      int
	category string
	merchant string
	amount   float64
	method   string
}

var recurringPayments = []recurringPayment{
	{day: 1, category: "rent", merchant: "Landlord GmbH", amount: 950, method: "transfer"},
	{day: 5, category: "utilities", merchant: "City Power", amount: 85.4, method: "transfer"},
	{day: 12, category: "subscriptions", merchant: "StreamFlix", amount: 12.99, method: "card"},
	{day: 20, category: "utilities", merchant: "NetFiber", amount: 39.9, method: "transfer"},
}

// Generator yields transactions in date order. The same seed always yields
// the same sequence.
type Generator struct {
	rnd      *rand.Rand
	accounts int
	sequence int64
	day      time.Time
	pending  []Transaction
}

func NewGenerator(seed int64, start time.Time, accounts int) *Generator {
	if accounts <= 0 {
		accounts = 1
	}
	return &Generator{
		rnd:      rand.New(rand.NewSource(seed)),
		accounts: accounts,
		day:      time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC),
	}
}

func (g *Generator) Next() Transaction {
	for len(g.pending) == 0 {
		g.pending = g.dayTransactions(g.day)
		g.day = g.day.AddDate(0, 0, 1)
	}
	next := g.pending[0]
	g.pending = g.pending[1:]
	g.sequence++
	next.ID = g.sequence
	return next
}

func (g *Generator) dayTransactions(day time.Time) []Transaction {
	out := make([]Transaction, 0, 4)
	for _, payment := range recurringPayments {
		if day.Day() == payment.day {
			out = append(out, Transaction{
				Date:          day,
				Account:       g.account(0),
				Category:      payment.category,
				Merchant:      payment.merchant,
				Amount:        payment.amount,
				PaymentMethod: payment.method,
				Recurring:     true,
			})
		}
	}
	for i := g.rnd.Intn(4); i > 0; i-- {
		picked := g.pickCategory()
		out = append(out, Transaction{
			Date:          day,
			Account:       g.account(g.rnd.Intn(g.accounts)),
			Category:      picked.name,
			Merchant:      pickOne(g.rnd, picked.merchants),
			Amount:        round2(picked.min + g.rnd.Float64()*(picked.max-picked.min)),
			PaymentMethod: g.pickMethod(),
		})
	}
	return out
}

func (g *Generator) pickCategory() category {
	total := 0
	for _, c := range categories {
		total += c.weight
	}
	p := g.rnd.Intn(total)
	for _, c := range categories {
		if p < c.weight {
			return c
		}
		p -= c.weight
	}
	return categories[len(categories)-1]
}

func (g *Generator) pickMethod() string {
	p := g.rnd.Intn(100)
	switch {
	case p < 75:
		return "card"
	case p < 90:
		return "cash"
	default:
		return "transfer"
	}
}

func (g *Generator) account(i int) string {
	names := []string{"checking", "credit-card", "savings"}
	if i < len(names) {
		return names[i]
	}
	return fmt.Sprintf("account-%d", i+1)
}

// Record renders t in Columns order.
func (t Transaction) Record() []string {
	return []string{
		strconv.FormatInt(t.ID, 10),
		t.Date.Format(time.DateOnly),
		t.Account,
		t.Category,
		t.Merchant,
		strconv.FormatFloat(t.Amount, 'f', 2, 64),
		t.PaymentMethod,
		strconv.FormatBool(t.Recurring),
	}
}

func round2(value float64) float64 {
	return math.Round(value*100) / 100
}

func pickOne(r *rand.Rand, values []string) string {
	return values[r.Intn(len(values))]
}
