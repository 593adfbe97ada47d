package roomcfg

// Default returns the built-in configuration used when no document is
// available. It mirrors the room roster and export schema the system was
// originally deployed with.
func Default() Config {
	return Config{
		Rooms: []Room{
			{CSVName: "ホールⅠ", ID: "hall-1", DisplayName: "ホールⅠ"},
			{CSVName: "ホールⅡ", ID: "hall-2", DisplayName: "ホールⅡ"},
			{CSVName: "ホール全", ID: "hall-combined", DisplayName: "ホール全"},
			{CSVName: "中会議室", ID: "medium-room", DisplayName: "中会議室"},
			{CSVName: "研修室", ID: "training-room", DisplayName: "研修室"},
			{CSVName: "小会議室", ID: "small-room", DisplayName: "小会議室"},
			{CSVName: "大会議室", ID: "large-room", DisplayName: "大会議室"},
			{CSVName: "役員会議室", ID: "executive-room", DisplayName: "役員会議室"},
		},
		InternalRoomIDs: []string{"large-room", "executive-room"},
		HiddenRoomIDs:   []string{"hall-combined"},
		CSVColumnMapping: map[string]string{
			FieldBookingDatetime:  defaultBookingDatetimeColumn,
			FieldRoomName:         defaultRoomNameColumn,
			FieldTotalAmount:      defaultTotalAmountColumn,
			FieldCancellationDate: defaultCancellationDateColumn,
			"display_name":        "案内表示名(予約内容)",
			"company_name":        "事業所名",
			"extension":           "延長(予約内容)",
			"equipment":           "備品(予約内容)",
			"notes":               "備考（ご要望や持込機材などございましたらご入力ください。）",
			"memo":                "メモ",
			"purpose":             "利用目的(予約内容)",
			"member_type":         "会員種別(予約内容)",
			"department_name":     "部署名",
			"contact_person":      "担当者名",
			"zip_code":            "郵便番号",
			"prefecture":          "都道府県",
			"city":                "市区町村",
			"address_rest":        "以降の住所",
			"phone_number":        "電話番号",
		},
		ModalFields: ModalFields{
			{Label: "利用日時", Field: FieldBookingDatetime},
			{Label: "会議室", Field: FieldRoomName},
			{Label: "案内表示名", Field: "display_name"},
			{Label: "事業所名", Field: "company_name"},
			{Label: "担当者名", Field: "contact_person"},
			{Label: "延長", Field: "extension"},
			{Label: "備品", Field: "equipment"},
		},
		DataSplitRules: []SplitRule{
			{
				SourceRoomID:  "hall-combined",
				TargetRoomIDs: []string{"hall-1", "hall-2"},
				Enabled:       true,
				Description:   "ホール全はホールⅠとホールⅡの予約として表示する",
			},
		},
	}
}
