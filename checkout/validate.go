package checkout

import (
	"regexp"
	"strings"

	"checkout-svc/models"
)

// Field validation for the checkout form. Pure and synchronous: no
// remote call happens until this returns an empty error map.

var (
	phoneRe      = regexp.MustCompile(`^\+?[0-9() -]{8,20}$`)
	postalCodeRe = regexp.MustCompile(`^[0-9]{5}-?[0-9]{3}$`)
	cardExpiryRe = regexp.MustCompile(`^(0[1-9]|1[0-2])/([0-9]{2})$`)
	cardCVVRe    = regexp.MustCompile(`^[0-9]{3,4}$`)
	digitsRe     = regexp.MustCompile(`[^0-9]`)
)

// Validate checks the form against the chosen payment method and
// returns field-level errors, empty when the form may be submitted.
func Validate(form models.ShippingForm, shipping *models.ShippingSelection, paymentMethod, billingType string) map[string]string {
	errs := make(map[string]string)

	required := map[string]string{
		"name":        form.Name,
		"phone":       form.Phone,
		"postal_code": form.PostalCode,
		"street":      form.Street,
		"number":      form.Number,
		"city":        form.City,
		"state":       form.State,
	}
	for field, value := range required {
		if strings.TrimSpace(value) == "" {
			errs[field] = "campo obrigatório"
		}
	}

	if _, ok := errs["phone"]; !ok && !phoneRe.MatchString(form.Phone) {
		errs["phone"] = "telefone inválido"
	}
	if _, ok := errs["postal_code"]; !ok && !postalCodeRe.MatchString(form.PostalCode) {
		errs["postal_code"] = "CEP inválido"
	}

	if shipping == nil {
		errs["shipping"] = "selecione uma opção de frete"
	}

	switch paymentMethod {
	case models.PaymentMethodDirectTransfer:
		// No extra fields.
	case models.PaymentMethodGateway:
		if !ValidTaxID(form.TaxID) {
			errs["tax_id"] = "CPF/CNPJ inválido"
		}
		switch billingType {
		case models.BillingTypeTransfer, models.BillingTypeVoucher:
		case models.BillingTypeCard:
			validateCard(form, errs)
		default:
			errs["billing_type"] = "forma de cobrança inválida"
		}
	default:
		errs["payment_method"] = "método de pagamento inválido"
	}

	return errs
}

func validateCard(form models.ShippingForm, errs map[string]string) {
	number := digitsRe.ReplaceAllString(form.CardNumber, "")
	if len(number) < 13 || len(number) > 19 || !luhnValid(number) {
		errs["card_number"] = "número do cartão inválido"
	}
	if strings.TrimSpace(form.CardHolder) == "" {
		errs["card_holder"] = "campo obrigatório"
	}
	if !cardExpiryRe.MatchString(form.CardExpiry) {
		errs["card_expiry"] = "validade inválida"
	}
	if !cardCVVRe.MatchString(form.CardCVV) {
		errs["card_cvv"] = "CVV inválido"
	}
}

func luhnValid(number string) bool {
	sum := 0
	double := false
	for i := len(number) - 1; i >= 0; i-- {
		d := int(number[i] - '0')
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}
	return sum%10 == 0
}

// ValidTaxID accepts a CPF (11 digits) or CNPJ (14 digits) with valid
// check digits.
func ValidTaxID(taxID string) bool {
	digits := digitsRe.ReplaceAllString(taxID, "")
	switch len(digits) {
	case 11:
		return validCPF(digits)
	case 14:
		return validCNPJ(digits)
	default:
		return false
	}
}

func validCPF(cpf string) bool {
	if allSame(cpf) {
		return false
	}
	for _, n := range []int{9, 10} {
		sum := 0
		for i := 0; i < n; i++ {
			sum += int(cpf[i]-'0') * (n + 1 - i)
		}
		check := (sum * 10) % 11 % 10
		if check != int(cpf[n]-'0') {
			return false
		}
	}
	return true
}

func validCNPJ(cnpj string) bool {
	if allSame(cnpj) {
		return false
	}
	weights := []int{6, 5, 4, 3, 2, 9, 8, 7, 6, 5, 4, 3, 2}
	for _, n := range []int{12, 13} {
		sum := 0
		offset := len(weights) - n
		for i := 0; i < n; i++ {
			sum += int(cnpj[i]-'0') * weights[offset+i]
		}
		check := sum % 11
		if check < 2 {
			check = 0
		} else {
			check = 11 - check
		}
		if check != int(cnpj[n]-'0') {
			return false
		}
	}
	return true
}

func allSame(s string) bool {
	for i := 1; i < len(s); i++ {
		if s[i] != s[0] {
			return false
		}
	}
	return true
}
