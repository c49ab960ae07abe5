package secrets

import "strconv"

// Key layout on the kvstore collaborator, one partition per account:
//
//	USER#{accountID} | SM#{name}          secret metadata
//	USER#{accountID} | S#{name}#{version} one secret version
func partitionKey(accountID string) string {
	return "USER#" + accountID
}

func metadataSK(name string) string {
	return "SM#" + name
}

func versionSK(name string, versionID int64) string {
	return "S#" + name + "#" + strconv.FormatInt(versionID, 10)
}
