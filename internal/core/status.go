package core

import "fmt"

// Outcome is the normalized result of a payment as seen by pollers
type Outcome string

const (
	OutcomePending  Outcome = "pending"
	OutcomePaid     Outcome = "paid"
	OutcomeDenied   Outcome = "denied"
	OutcomeExpired  Outcome = "expired"
	OutcomeCanceled Outcome = "canceled"
	OutcomeRefunded Outcome = "refunded"
)

// UnknownStatusPolicy decides what happens to a status code missing from a table
type UnknownStatusPolicy string

const (
	UnknownStatusReject  UnknownStatusPolicy = "reject"
	UnknownStatusPending UnknownStatusPolicy = "pending"
)

// ParseUnknownStatusPolicy parses a policy name, defaulting to reject
func ParseUnknownStatusPolicy(s string) (UnknownStatusPolicy, error) {
	switch UnknownStatusPolicy(s) {
	case "", UnknownStatusReject:
		return UnknownStatusReject, nil
	case UnknownStatusPending:
		return UnknownStatusPending, nil
	}
	return "", fmt.Errorf("unknown status policy %q", s)
}

// StatusInfo is the semantic meaning of one gateway status code
type StatusInfo struct {
	Code        int
	Name        string
	Description string
	IsPaid      bool
	IsDenied    bool
	IsExpired   bool
	IsCanceled  bool
	IsRefunded  bool
}

// IsTerminal reports whether the status ends polling
func (s StatusInfo) IsTerminal() bool {
	return s.IsPaid || s.IsDenied || s.IsExpired || s.IsCanceled || s.IsRefunded
}

// Outcome returns the normalized outcome for the status
func (s StatusInfo) Outcome() Outcome {
	return outcomeOf(s.IsPaid, s.IsDenied, s.IsExpired, s.IsCanceled, s.IsRefunded)
}

func outcomeOf(paid, denied, expired, canceled, refunded bool) Outcome {
	switch {
	case paid:
		return OutcomePaid
	case denied:
		return OutcomeDenied
	case expired:
		return OutcomeExpired
	case canceled:
		return OutcomeCanceled
	case refunded:
		return OutcomeRefunded
	}
	return OutcomePending
}

// StatusTable maps gateway status codes to their meaning
type StatusTable map[int]StatusInfo

// Lookup returns the entry for code
func (t StatusTable) Lookup(code int) (StatusInfo, bool) {
	info, ok := t[code]
	return info, ok
}

// Resolve looks up code and applies policy when it is not in the table
func (t StatusTable) Resolve(code int, policy UnknownStatusPolicy) (StatusInfo, error) {
	if info, ok := t.Lookup(code); ok {
		return info, nil
	}
	if policy == UnknownStatusPending {
		return StatusInfo{
			Code:        code,
			Name:        "Desconhecido",
			Description: fmt.Sprintf("status %d não mapeado", code),
		}, nil
	}
	return StatusInfo{}, fmt.Errorf("%w: %d", ErrUnknownStatus, code)
}

func pending(code int, name, desc string) StatusInfo {
	return StatusInfo{Code: code, Name: name, Description: desc}
}

// SuperPayStatusTable is the status vocabulary of the SuperPay API
func SuperPayStatusTable() StatusTable {
	return StatusTable{
		1:  pending(1, "Aguardando Pagamento", "Fatura gerada, aguardando pagamento"),
		2:  pending(2, "Em Processamento", "Pagamento em processamento"),
		3:  pending(3, "Processando", "Pagamento sendo processado pelo banco"),
		4:  pending(4, "Aprovado", "Pagamento aprovado, aguardando liquidação"),
		5:  {Code: 5, Name: "Pago", Description: "Pagamento confirmado", IsPaid: true},
		6:  {Code: 6, Name: "Cancelado", Description: "Fatura cancelada", IsCanceled: true},
		7:  pending(7, "Aguardando Estorno", "Estorno solicitado"),
		8:  {Code: 8, Name: "Parcialmente Estornado", Description: "Pagamento estornado parcialmente", IsRefunded: true},
		9:  {Code: 9, Name: "Estornado", Description: "Pagamento estornado", IsRefunded: true},
		10: {Code: 10, Name: "Contestado", Description: "Pagamento contestado", IsDenied: true},
		12: {Code: 12, Name: "Pagamento Negado", Description: "Pagamento recusado", IsDenied: true},
		15: {Code: 15, Name: "Pagamento Vencido", Description: "Fatura vencida", IsExpired: true},
		16: {Code: 16, Name: "Erro no Pagamento", Description: "Erro ao processar pagamento", IsDenied: true},
	}
}

// SuperPayBRStatusTable is the SuperPay v4 vocabulary, a superset of SuperPay's
func SuperPayBRStatusTable() StatusTable {
	t := SuperPayStatusTable()
	t[11] = StatusInfo{Code: 11, Name: "Chargeback", Description: "Pagamento revertido pelo pagador", IsRefunded: true}
	t[13] = StatusInfo{Code: 13, Name: "Expirado", Description: "Código PIX expirado", IsExpired: true}
	return t
}

// TryploPayStatusTable is the status vocabulary of the TryploPay API
func TryploPayStatusTable() StatusTable {
	return StatusTable{
		1: pending(1, "pending", "Waiting for payment"),
		2: pending(2, "processing", "Payment being processed"),
		3: {Code: 3, Name: "paid", Description: "Payment confirmed", IsPaid: true},
		4: {Code: 4, Name: "denied", Description: "Payment denied", IsDenied: true},
		5: {Code: 5, Name: "expired", Description: "PIX charge expired", IsExpired: true},
		6: {Code: 6, Name: "canceled", Description: "Charge canceled", IsCanceled: true},
		7: {Code: 7, Name: "refunded", Description: "Payment refunded", IsRefunded: true},
	}
}
