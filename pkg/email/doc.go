// Package email defines the message type the mail queue carries and the
// senders that deliver it.
//
// Sender is implemented by PostmarkSender for production and DevSender, which
// writes an .html and a .json file per message for local inspection. New picks
// one from Config.Driver. Every sender validates a Message before delivery;
// validation failures wrap both ErrInvalidMessage and
// validator.ValidationErrors.
//
// QueueSender adapts a Sender to the queue engine, decoding each job payload
// into a Message:
//
//	sender, err := email.New(cfg)
//	if err != nil {
//		return err
//	}
//	engine, err := queue.NewEngine(storage, email.QueueSender(sender),
//		queue.WithGlobalLimiter(global))
//
// Direct sends that bypass the queue should share the same global budget:
//
//	direct := email.RateLimited(sender, global)
//	res, err := direct.Send(ctx, email.Message{
//		To:       "ada@example.com",
//		Subject:  "Your receipt",
//		HTMLBody: html,
//	})
//
// The templates subpackage renders templ components into message bodies.
package email
