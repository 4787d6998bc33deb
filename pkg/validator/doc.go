// Package validator builds input validation from small declarative rules.
//
// A Rule couples a check with the field-level error reported when it fails.
// Apply evaluates all rules and returns every failure at once as
// ValidationErrors, which implements error and matches ErrValidationFailed:
//
//	err := validator.Apply(
//		validator.Required("to", msg.To),
//		validator.Email("to", msg.To),
//		validator.MaxLen("subject", msg.Subject, 998),
//		validator.OptionalEmail("reply_to", msg.ReplyTo),
//	)
//	if verrs := validator.ExtractValidationErrors(err); verrs != nil {
//		for _, field := range verrs.Fields() {
//			log.Println(field, verrs.Get(field))
//		}
//	}
package validator
