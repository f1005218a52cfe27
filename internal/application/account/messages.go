package account

import "fmt"

type message struct {
	subject string
	body    string
}

func verificationMessage(username, code string) message {
	return message{
		subject: "Verify your account",
		body: fmt.Sprintf("Hello %s,\n\nYour verification code is %s.\n"+
			"Enter it to activate your account.\n", username, code),
	}
}

func verifiedMessage(username string) message {
	return message{
		subject: "Account verified",
		body:    fmt.Sprintf("Hello %s,\n\nYour account has been verified. You can now log in.\n", username),
	}
}

func resetCodeMessage(username, code string) message {
	return message{
		subject: "Password reset code",
		body: fmt.Sprintf("Hello %s,\n\nYour password reset code is %s.\n"+
			"If you did not request a reset, ignore this email.\n", username, code),
	}
}

func passwordChangedMessage(username string) message {
	return message{
		subject: "Password changed",
		body: fmt.Sprintf("Hello %s,\n\nYour password was changed. "+
			"If this was not you, request a password reset immediately.\n", username),
	}
}
