// Package bist holds the fixed BIST100 ticker subset targeted by the
// pipeline.
package bist

// Subset returns a copy of the BIST100 tickers to ingest, in fetch order.
func Subset() []string {
	return append([]string(nil), subset...)
}

var subset = []string{
	"BTCIM.IS", "KOZAL.IS", "VESTL.IS", "TCELL.IS", "KUYAS.IS",
	"TTKOM.IS", "PETKM.IS", "MGROS.IS", "SISE.IS", "ENKAI.IS",
	"ISMEN.IS", "AKSEN.IS", "TSKB.IS", "HALKB.IS", "YKBNK.IS",
	"VAKBN.IS", "DOAS.IS", "ZOREN.IS", "DOHOL.IS", "SKBNK.IS",
	"GSRAY.IS", "KOZAA.IS", "TTRAK.IS", "FENER.IS", "TKFEN.IS",
	"GARAN.IS", "AKBNK.IS", "CLEBI.IS", "TOASO.IS", "TUPRS.IS",
	"BIMAS.IS", "ANSGR.IS", "FROTO.IS", "ASELS.IS", "KRDMD.IS",
	"CIMSA.IS", "BRSAN.IS", "ODAS.IS", "BSOKE.IS", "KCHOL.IS",
	"IPEKE.IS", "CCOLA.IS", "AEFES.IS", "ULKER.IS", "EGEEN.IS",
	"BRYAT.IS", "OTKAR.IS", "THYAO.IS", "ALARK.IS", "HEKTS.IS",
	"IEYHO.IS", "SAHOL.IS", "AKSA.IS", "TAVHL.IS", "PGSUS.IS",
	"ARCLK.IS", "SASA.IS", "EREGL.IS", "ISCTR.IS", "EKGYO.IS",
	"GUBRF.IS", "MAVI.IS", "BERA.IS", "AGHOL.IS", "ENJSA.IS",
	"MPARK.IS", "RALYH.IS", "SOKM.IS", "OYAKC.IS", "TURSG.IS",
	"KONTR.IS", "TUREX.IS", "CANTE.IS", "GENIL.IS", "GESAN.IS",
	"YEOTK.IS", "MAGEN.IS", "MIATK.IS", "GRSEL.IS", "SMRTG.IS",
	"KCAER.IS", "ALFAS.IS", "ASTOR.IS", "EUPWR.IS", "CWENE.IS",
	"KTLEV.IS", "PASEU.IS", "ENERY.IS", "REEDR.IS", "TABGD.IS",
	"BINHO.IS", "AVPGY.IS", "LMKDC.IS", "OBAMS.IS", "ALTNY.IS",
	"EFORC.IS", "GRTHO.IS", "GLRMK.IS", "DSTKF.IS", "BALSU.IS",
}
