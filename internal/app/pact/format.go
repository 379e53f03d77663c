package pact

// Regexes used by the format helpers.
const (
	ISO8601DateTimeMsRegex = `^\d{4}-[01]\d-[0-3]\dT[0-2]\d:[0-5]\d:[0-5]\d\.\d+([+-][0-2]\d(?:|:?[0-5]\d)|Z)?$`
	DateRegex              = `^\d{4}-[01]\d-[0-3]\d$`
	UUIDRegex              = `^[0-9a-f]{8}(-[0-9a-f]{4}){3}-[0-9a-f]{12}$`
	IPAddressRegex         = `^(\d{1,3}\.)+\d{1,3}$`
	HexadecimalRegex       = `^[0-9a-fA-F]+$`
	SemVerRegex            = `^\d+(\.\d+){2,3}$`
)

func ISO8601DateTime() Matcher {
	return Term(ISO8601DateTimeMsRegex, "2025-07-24T15:43:24.204757Z")
}

func Date() Matcher {
	return Term(DateRegex, "2000-02-01")
}

func UUID() Matcher {
	return Term(UUIDRegex, "fc763eba-0905-41c5-a27f-3934ab26786c")
}

func IPAddress() Matcher {
	return Term(IPAddressRegex, "127.0.0.13")
}

func Hexadecimal() Matcher {
	return Term(HexadecimalRegex, "3F")
}

func SemVer() Matcher {
	return Term(SemVerRegex, "1.0.0")
}

func Integer() Matcher {
	return Like(1)
}

func Decimal() Matcher {
	return Like(1.5)
}
