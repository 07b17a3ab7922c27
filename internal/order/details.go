package order

// PaymentDetails is the provider metadata of an order. Only the section of the
// gateway that handled the order is set; each adapter reads and writes its own.
type PaymentDetails struct {
	COD         *CODDetails         `json:"cod,omitempty"`
	Stripe      *StripeDetails      `json:"stripe,omitempty"`
	PayPal      *PayPalDetails      `json:"paypal,omitempty"`
	PayFast     *PayFastDetails     `json:"payfast,omitempty"`
	MercadoPago *MercadoPagoDetails `json:"mercadopago,omitempty"`
}

type CODDetails struct {
	Instructions string `json:"instructions,omitempty"`
}

type StripeDetails struct {
	SessionID       string `json:"sessionId,omitempty"`
	PaymentIntentID string `json:"paymentIntentId,omitempty"`
	PaymentStatus   string `json:"paymentStatus,omitempty"`
}

type PayPalDetails struct {
	OrderID   string `json:"orderId,omitempty"`
	PayerID   string `json:"payerId,omitempty"`
	CaptureID string `json:"captureId,omitempty"`
	Status    string `json:"status,omitempty"`
}

type PayFastDetails struct {
	PaymentID     string `json:"pfPaymentId,omitempty"`
	PaymentStatus string `json:"paymentStatus,omitempty"`
	AmountGross   string `json:"amountGross,omitempty"`
}

type MercadoPagoDetails struct {
	PreferenceID string `json:"preferenceId,omitempty"`
	PaymentID    string `json:"paymentId,omitempty"`
	Status       string `json:"status,omitempty"`
}

// Merge returns d updated with the non-empty fields of in. Fields that in
// leaves empty keep their stored value. Neither argument is modified.
func (d PaymentDetails) Merge(in PaymentDetails) PaymentDetails {
	out := d
	if in.COD != nil {
		v := CODDetails{}
		if d.COD != nil {
			v = *d.COD
		}
		v.Instructions = pick(v.Instructions, in.COD.Instructions)
		out.COD = &v
	}
	if in.Stripe != nil {
		v := StripeDetails{}
		if d.Stripe != nil {
			v = *d.Stripe
		}
		v.SessionID = pick(v.SessionID, in.Stripe.SessionID)
		v.PaymentIntentID = pick(v.PaymentIntentID, in.Stripe.PaymentIntentID)
		v.PaymentStatus = pick(v.PaymentStatus, in.Stripe.PaymentStatus)
		out.Stripe = &v
	}
	if in.PayPal != nil {
		v := PayPalDetails{}
		if d.PayPal != nil {
			v = *d.PayPal
		}
		v.OrderID = pick(v.OrderID, in.PayPal.OrderID)
		v.PayerID = pick(v.PayerID, in.PayPal.PayerID)
		v.CaptureID = pick(v.CaptureID, in.PayPal.CaptureID)
		v.Status = pick(v.Status, in.PayPal.Status)
		out.PayPal = &v
	}
	if in.PayFast != nil {
		v := PayFastDetails{}
		if d.PayFast != nil {
			v = *d.PayFast
		}
		v.PaymentID = pick(v.PaymentID, in.PayFast.PaymentID)
		v.PaymentStatus = pick(v.PaymentStatus, in.PayFast.PaymentStatus)
		v.AmountGross = pick(v.AmountGross, in.PayFast.AmountGross)
		out.PayFast = &v
	}
	if in.MercadoPago != nil {
		v := MercadoPagoDetails{}
		if d.MercadoPago != nil {
			v = *d.MercadoPago
		}
		v.PreferenceID = pick(v.PreferenceID, in.MercadoPago.PreferenceID)
		v.PaymentID = pick(v.PaymentID, in.MercadoPago.PaymentID)
		v.Status = pick(v.Status, in.MercadoPago.Status)
		out.MercadoPago = &v
	}
	return out
}

func pick(stored, incoming string) string {
	if incoming != "" {
		return incoming
	}
	return stored
}
