package checkout

import (
	"testing"

	"checkout-svc/models"
)

func validShipping() *models.ShippingSelection {
	return &models.ShippingSelection{Carrier: "Correios", Service: "PAC", Price: 15.90, DeliveryTimeDays: 8}
}

func validForm() models.ShippingForm {
	return models.ShippingForm{
		Name:       "Maria Souza",
		Email:      "maria@example.com",
		Phone:      "11 99999-8888",
		PostalCode: "01310-100",
		Street:     "Av. Paulista",
		Number:     "1000",
		City:       "São Paulo",
		State:      "SP",
	}
}

func validCardForm() models.ShippingForm {
	form := validForm()
	form.TaxID = "529.982.247-25"
	form.CardNumber = "4242 4242 4242 4242"
	form.CardHolder = "MARIA SOUZA"
	form.CardExpiry = "12/30"
	form.CardCVV = "123"
	form.Installments = 1
	return form
}

func TestValidate_DirectTransferOK(t *testing.T) {
	errs := Validate(validForm(), validShipping(), models.PaymentMethodDirectTransfer, "")
	if len(errs) != 0 {
		t.Errorf("Expected no errors, got %v", errs)
	}
}

func TestValidate_RequiredFields(t *testing.T) {
	form := validForm()
	form.Name = ""
	form.City = " "

	errs := Validate(form, validShipping(), models.PaymentMethodDirectTransfer, "")
	if _, ok := errs["name"]; !ok {
		t.Error("Expected error for missing name")
	}
	if _, ok := errs["city"]; !ok {
		t.Error("Expected error for blank city")
	}
}

func TestValidate_MissingShippingSelection(t *testing.T) {
	errs := Validate(validForm(), nil, models.PaymentMethodDirectTransfer, "")
	if _, ok := errs["shipping"]; !ok {
		t.Error("Expected error for missing shipping selection")
	}
}

func TestValidate_GatewayRequiresTaxID(t *testing.T) {
	form := validForm()

	errs := Validate(form, validShipping(), models.PaymentMethodGateway, models.BillingTypeVoucher)
	if _, ok := errs["tax_id"]; !ok {
		t.Error("Expected error for missing tax id on gateway rail")
	}

	form.TaxID = "529.982.247-25"
	errs = Validate(form, validShipping(), models.PaymentMethodGateway, models.BillingTypeVoucher)
	if len(errs) != 0 {
		t.Errorf("Expected no errors with valid CPF, got %v", errs)
	}
}

func TestValidate_GatewayRejectsUnknownBillingType(t *testing.T) {
	form := validForm()
	form.TaxID = "529.982.247-25"

	errs := Validate(form, validShipping(), models.PaymentMethodGateway, "carne")
	if _, ok := errs["billing_type"]; !ok {
		t.Error("Expected error for unknown billing sub-type")
	}

	errs = Validate(form, validShipping(), models.PaymentMethodGateway, "")
	if _, ok := errs["billing_type"]; !ok {
		t.Error("Expected error for missing billing sub-type")
	}
}

func TestValidate_CardFields(t *testing.T) {
	form := validCardForm()
	errs := Validate(form, validShipping(), models.PaymentMethodGateway, models.BillingTypeCard)
	if len(errs) != 0 {
		t.Fatalf("Expected no errors for valid card form, got %v", errs)
	}

	form.CardNumber = "4242 4242 4242 4241" // fails Luhn
	form.CardExpiry = "13/30"
	form.CardCVV = "12"
	errs = Validate(form, validShipping(), models.PaymentMethodGateway, models.BillingTypeCard)
	for _, field := range []string{"card_number", "card_expiry", "card_cvv"} {
		if _, ok := errs[field]; !ok {
			t.Errorf("Expected error for %s", field)
		}
	}
}

func TestValidTaxID(t *testing.T) {
	cases := []struct {
		taxID string
		want  bool
	}{
		{"529.982.247-25", true},
		{"52998224725", true},
		{"52998224724", false},
		{"111.111.111-11", false},
		{"11.222.333/0001-81", true},
		{"11.222.333/0001-82", false},
		{"123", false},
	}
	for _, tc := range cases {
		if got := ValidTaxID(tc.taxID); got != tc.want {
			t.Errorf("ValidTaxID(%q) = %v, want %v", tc.taxID, got, tc.want)
		}
	}
}
